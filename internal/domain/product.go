package domain

// ProductDetail is the single-product payload as served by the detail endpoint.
// Nullable fields are pointers so that absence can be told apart from zero.
type ProductDetail struct {
	ID          *int64    `json:"id"`
	Slug        *string   `json:"slug"`
	Name        *string   `json:"name"`
	Producer    *string   `json:"producer"`
	Category    Category  `json:"category"`
	Stickers    []Sticker `json:"stickers"`
	Cost        *float64  `json:"cost"`
	OldCost     *float64  `json:"oldCost"`
	InStock     bool      `json:"inStock"`
	Images      []string  `json:"images"`
	Description *string   `json:"description"`
	Country     *string   `json:"country"`
}

type Category struct {
	Name    string           `json:"name"`
	Parents []CategoryParent `json:"parents"`
}

type CategoryParent struct {
	Name string `json:"name"`
}

type Sticker struct {
	Name string `json:"name"`
}
