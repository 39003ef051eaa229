package catalog

import (
	"context"
	"fmt"
	"iter"

	"apteka/parser/internal/domain"

	log "github.com/sirupsen/logrus"
)

// PageFetcher returns the goods listed on one catalog search page.
type PageFetcher interface {
	GetCatalogPage(ctx context.Context, cursor domain.PageCursor) ([]domain.ProductStub, error)
}

// Walker turns a catalog slug into the stubs of every product listed under it.
type Walker struct {
	fetcher  PageFetcher
	pageSize int
}

func NewWalker(fetcher PageFetcher, pageSize int) *Walker {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &Walker{fetcher: fetcher, pageSize: pageSize}
}

// Walk lazily pages through slug starting at offset 0, advancing by the page
// size after every non-empty page. The walk ends at the first empty page; a
// short but non-empty page does not end it.
//
// A failed page request is yielded as the final element with its cursor
// offset in the error; nothing is retried here.
func (w *Walker) Walk(ctx context.Context, slug domain.CatalogSlug) iter.Seq2[domain.ProductStub, error] {
	return func(yield func(domain.ProductStub, error) bool) {
		cursor := domain.NewPageCursor(slug, w.pageSize)

		for {
			if err := ctx.Err(); err != nil {
				yield(domain.ProductStub{}, err)
				return
			}

			stubs, err := w.fetcher.GetCatalogPage(ctx, cursor)
			if err != nil {
				yield(domain.ProductStub{}, fmt.Errorf("catalog %s at offset %d: %w", slug, cursor.Offset, err))
				return
			}

			if len(stubs) == 0 {
				log.Debugf("Catalog %s exhausted at offset %d", slug, cursor.Offset)
				return
			}

			for _, stub := range stubs {
				if !yield(stub, nil) {
					return
				}
			}

			cursor = cursor.Next()
		}
	}
}
