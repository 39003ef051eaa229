package domain

// DefaultPageSize is the number of goods requested per catalog search page.
const DefaultPageSize = 12

// CatalogSlug identifies one category, e.g. "sredstva-gigieny/mylo/mylo-zhidkoe".
type CatalogSlug string

func (s CatalogSlug) String() string {
	return string(s)
}

// PageCursor tracks pagination progress through one slug's search results.
type PageCursor struct {
	Slug     CatalogSlug `json:"slug"`
	Offset   int         `json:"offset"`
	PageSize int         `json:"page_size"`
}

func NewPageCursor(slug CatalogSlug, pageSize int) PageCursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return PageCursor{Slug: slug, PageSize: pageSize}
}

// Next returns the cursor for the page following c.
func (c PageCursor) Next() PageCursor {
	c.Offset += c.PageSize
	return c
}

type ProductStub struct {
	ID int64 `json:"id"`
}
