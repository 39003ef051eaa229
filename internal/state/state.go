package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"apteka/parser/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// WalkStatus is the last known progress of one slug's catalog walk.
// It is informational: walks always restart from offset 0.
type WalkStatus struct {
	Slug       domain.CatalogSlug
	Status     string
	LastOffset int
	Products   int
	Error      string
	UpdatedAt  time.Time
}

type StateManager interface {
	StartWalk(ctx context.Context, slug domain.CatalogSlug) error
	RecordPage(ctx context.Context, slug domain.CatalogSlug, offset, products int) error
	FinishWalk(ctx context.Context, slug domain.CatalogSlug, walkErr error) error
	GetWalkStatus(ctx context.Context, slug domain.CatalogSlug) (*WalkStatus, error)
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
	now         func() time.Time
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "apteka:walk:",
		now:         time.Now,
	}
}

func (s *redisStateManager) key(slug domain.CatalogSlug) string {
	return s.keyPrefix + slug.String()
}

func (s *redisStateManager) StartWalk(ctx context.Context, slug domain.CatalogSlug) error {
	key := s.key(slug)
	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"status", StatusRunning,
			"last_offset", 0,
			"products", 0,
			"updated_at", s.now().Unix(),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to start walk state for %s: %w", slug, err)
	}
	return nil
}

func (s *redisStateManager) RecordPage(ctx context.Context, slug domain.CatalogSlug, offset, products int) error {
	err := s.redisClient.HSet(ctx, s.key(slug),
		"last_offset", offset,
		"products", products,
		"updated_at", s.now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to record page for %s: %w", slug, err)
	}
	return nil
}

func (s *redisStateManager) FinishWalk(ctx context.Context, slug domain.CatalogSlug, walkErr error) error {
	values := []any{"status", StatusDone, "error", "", "updated_at", s.now().Unix()}
	if walkErr != nil {
		values = []any{"status", StatusFailed, "error", walkErr.Error(), "updated_at", s.now().Unix()}
	}

	if err := s.redisClient.HSet(ctx, s.key(slug), values...).Err(); err != nil {
		return fmt.Errorf("failed to finish walk state for %s: %w", slug, err)
	}
	return nil
}

// GetWalkStatus returns nil, nil for a slug that was never walked.
func (s *redisStateManager) GetWalkStatus(ctx context.Context, slug domain.CatalogSlug) (*WalkStatus, error) {
	fields, err := s.redisClient.HGetAll(ctx, s.key(slug)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get walk state for %s: %w", slug, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	status := &WalkStatus{
		Slug:   slug,
		Status: fields["status"],
		Error:  fields["error"],
	}
	if status.LastOffset, err = atoiField(fields, "last_offset"); err != nil {
		return nil, fmt.Errorf("walk state for %s: %w", slug, err)
	}
	if status.Products, err = atoiField(fields, "products"); err != nil {
		return nil, fmt.Errorf("walk state for %s: %w", slug, err)
	}
	updatedAt, err := atoiField(fields, "updated_at")
	if err != nil {
		return nil, fmt.Errorf("walk state for %s: %w", slug, err)
	}
	status.UpdatedAt = time.Unix(int64(updatedAt), 0)

	return status, nil
}

func atoiField(fields map[string]string, name string) (int, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return v, nil
}

type nopStateManager struct{}

// NewNopStateManager is used when Redis is disabled.
func NewNopStateManager() StateManager {
	return nopStateManager{}
}

func (nopStateManager) StartWalk(context.Context, domain.CatalogSlug) error { return nil }

func (nopStateManager) RecordPage(context.Context, domain.CatalogSlug, int, int) error { return nil }

func (nopStateManager) FinishWalk(context.Context, domain.CatalogSlug, error) error { return nil }

func (nopStateManager) GetWalkStatus(context.Context, domain.CatalogSlug) (*WalkStatus, error) {
	return nil, nil
}
