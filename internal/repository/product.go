package repository

import (
	"context"
	"fmt"

	"apteka/parser/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductSink accepts normalized records. Implementations must be safe for concurrent use.
type ProductSink interface {
	SaveProduct(ctx context.Context, record *domain.ProductRecord) error
	Close() error
}

const createProductRecordsTable = `
CREATE TABLE IF NOT EXISTS product_records (
	rpc        BIGINT PRIMARY KEY,
	url        TEXT NOT NULL,
	data       JSONB NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type productRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductSink {
	return &productRepository{
		db: db,
	}
}

// EnsureSchema creates the product_records table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, createProductRecordsTable); err != nil {
		return fmt.Errorf("failed to create product_records: %w", err)
	}
	return nil
}

func (r *productRepository) SaveProduct(ctx context.Context, record *domain.ProductRecord) error {
	query := `
	INSERT INTO product_records (rpc, url, data, scraped_at)
	VALUES ($1, $2, $3, to_timestamp($4))
	ON CONFLICT (rpc)
	DO UPDATE SET url = $2, data = $3, scraped_at = to_timestamp($4)`
	_, err := r.db.Exec(ctx, query, record.RPC, record.URL, record, record.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save product %d: %w", record.RPC, err)
	}

	return nil
}

func (r *productRepository) Close() error {
	r.db.Close()
	return nil
}
