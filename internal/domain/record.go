package domain

// Reserved AttributeMap keys.
const (
	MetadataDescriptionKey = "__description"
	MetadataArticleKey     = "АРТИКУЛ"
	MetadataCountryKey     = "СТРАНА ПРОИЗВОДИТЕЛЬ"
)

// AttributeMap maps a lower-cased section header to the text found under it.
type AttributeMap map[string]string

// ProductRecord is the canonical output record handed to a sink.
type ProductRecord struct {
	Timestamp     float64      `json:"timestamp"` // Unix seconds at normalization
	RPC           int64        `json:"RPC"`
	URL           string       `json:"url"`
	Title         string       `json:"title"`
	MarketingTags []string     `json:"marketing_tags"`
	Brand         string       `json:"brand"`
	Section       []string     `json:"section"` // Breadcrumb, root to leaf
	PriceData     PriceData    `json:"price_data"`
	Stock         Stock        `json:"stock"`
	Assets        Assets       `json:"assets"`
	Metadata      AttributeMap `json:"metadata"`
	Variants      int          `json:"variants"`
}

type PriceData struct {
	Current  float64 `json:"current"`
	Original float64 `json:"original"`
	SaleTag  string  `json:"sale_tag"`
}

type Stock struct {
	InStock bool `json:"in_stock"`
	Count   int  `json:"count"`
}

type Assets struct {
	MainImage string   `json:"main_image"`
	SetImages []string `json:"set_images"`
	View360   []string `json:"view360"`
	Video     []string `json:"video"`
}
