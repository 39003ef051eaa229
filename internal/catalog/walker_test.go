package catalog

import (
	"context"
	"errors"
	"testing"

	"apteka/parser/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves pages keyed by offset and records every cursor it saw.
type fakeFetcher struct {
	pages   map[int][]domain.ProductStub
	errAt   map[int]error
	cursors []domain.PageCursor
}

func (f *fakeFetcher) GetCatalogPage(ctx context.Context, cursor domain.PageCursor) ([]domain.ProductStub, error) {
	f.cursors = append(f.cursors, cursor)
	if err, ok := f.errAt[cursor.Offset]; ok {
		return nil, err
	}
	return f.pages[cursor.Offset], nil
}

func (f *fakeFetcher) offsets() []int {
	offsets := make([]int, 0, len(f.cursors))
	for _, c := range f.cursors {
		offsets = append(offsets, c.Offset)
	}
	return offsets
}

func collect(t *testing.T, w *Walker, ctx context.Context, slug domain.CatalogSlug) ([]domain.ProductStub, error) {
	t.Helper()
	var stubs []domain.ProductStub
	for stub, err := range w.Walk(ctx, slug) {
		if err != nil {
			return stubs, err
		}
		stubs = append(stubs, stub)
	}
	return stubs, nil
}

func stubs(ids ...int64) []domain.ProductStub {
	out := make([]domain.ProductStub, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ProductStub{ID: id})
	}
	return out
}

func TestWalker_SoapScenario(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]domain.ProductStub{
		0: stubs(1, 2),
	}}
	w := NewWalker(fetcher, domain.DefaultPageSize)

	got, err := collect(t, w, context.Background(), "soap")
	require.NoError(t, err)

	assert.Equal(t, stubs(1, 2), got)
	assert.Equal(t, []domain.PageCursor{
		{Slug: "soap", Offset: 0, PageSize: 12},
		{Slug: "soap", Offset: 12, PageSize: 12},
	}, fetcher.cursors)
}

func TestWalker_ShortPageDoesNotTerminate(t *testing.T) {
	full := make([]int64, 12)
	for i := range full {
		full[i] = int64(100 + i)
	}
	fetcher := &fakeFetcher{pages: map[int][]domain.ProductStub{
		0:  stubs(full...),
		12: stubs(200, 201, 202),
		24: stubs(300),
	}}
	w := NewWalker(fetcher, 12)

	got, err := collect(t, w, context.Background(), "vitamins")
	require.NoError(t, err)

	assert.Len(t, got, 16)
	assert.Equal(t, []int{0, 12, 24, 36}, fetcher.offsets())
}

func TestWalker_EmptyFirstPage(t *testing.T) {
	fetcher := &fakeFetcher{}
	w := NewWalker(fetcher, 12)

	got, err := collect(t, w, context.Background(), "empty")
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, []int{0}, fetcher.offsets())
}

func TestWalker_PageFailureEndsWalk(t *testing.T) {
	boom := errors.New("boom")
	fetcher := &fakeFetcher{
		pages: map[int][]domain.ProductStub{0: stubs(1, 2)},
		errAt: map[int]error{12: boom},
	}
	w := NewWalker(fetcher, 12)

	got, err := collect(t, w, context.Background(), "soap")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, stubs(1, 2), got)
	assert.Equal(t, []int{0, 12}, fetcher.offsets())
}

func TestWalker_StopsWhenConsumerBreaks(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]domain.ProductStub{
		0:  stubs(1, 2),
		12: stubs(3),
	}}
	w := NewWalker(fetcher, 12)

	for stub, err := range w.Walk(context.Background(), "soap") {
		require.NoError(t, err)
		if stub.ID == 1 {
			break
		}
	}

	assert.Equal(t, []int{0}, fetcher.offsets())
}

func TestWalker_CancelledContext(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]domain.ProductStub{0: stubs(1)}}
	w := NewWalker(fetcher, 12)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := collect(t, w, ctx, "soap")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
	assert.Empty(t, fetcher.cursors)
}

func TestWalker_OffsetsStrictlyIncreaseByPageSize(t *testing.T) {
	pages := map[int][]domain.ProductStub{}
	for page := 0; page < 7; page++ {
		pages[page*12] = stubs(int64(page))
	}
	fetcher := &fakeFetcher{pages: pages}
	w := NewWalker(fetcher, 0)

	_, err := collect(t, w, context.Background(), "soap")
	require.NoError(t, err)

	offsets := fetcher.offsets()
	require.Len(t, offsets, 8)
	for i := 1; i < len(offsets); i++ {
		assert.Equal(t, offsets[i-1]+12, offsets[i])
	}
}

func TestWalker_RestartsFromZero(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]domain.ProductStub{0: stubs(7)}}
	w := NewWalker(fetcher, 12)

	first, err := collect(t, w, context.Background(), "soap")
	require.NoError(t, err)
	second, err := collect(t, w, context.Background(), "soap")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{0, 12, 0, 12}, fetcher.offsets())
}
