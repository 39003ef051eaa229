package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"apteka/parser/internal/domain"
)

// Options carries the fixed site configuration the normalizer needs.
type Options struct {
	BaseURL         string   // Site root, prefixed to product URLs and image paths
	HeaderKeywords  []string // Closed set of description section headers
	BreadcrumbRoots []string // Labels placed before the category path
	SaleTagPrefix   string   // Leading word of the discount tag
}

type Normalizer struct {
	baseURL         string
	breadcrumbRoots []string
	saleTagPrefix   string
	segmenter       *Segmenter
	now             func() time.Time
}

func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		breadcrumbRoots: opts.BreadcrumbRoots,
		saleTagPrefix:   opts.SaleTagPrefix,
		segmenter:       NewSegmenter(opts.HeaderKeywords),
		now:             time.Now,
	}
}

// Normalize maps one detail payload to a ProductRecord. It fails with
// domain.ErrMalformedProduct when id, slug or name is missing.
func (n *Normalizer) Normalize(detail *domain.ProductDetail) (*domain.ProductRecord, error) {
	if detail == nil {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedProduct)
	}
	if detail.ID == nil {
		return nil, fmt.Errorf("%w: missing id", domain.ErrMalformedProduct)
	}
	if detail.Slug == nil {
		return nil, fmt.Errorf("%w: product %d missing slug", domain.ErrMalformedProduct, *detail.ID)
	}
	if detail.Name == nil {
		return nil, fmt.Errorf("%w: product %d missing name", domain.ErrMalformedProduct, *detail.ID)
	}

	id := *detail.ID

	return &domain.ProductRecord{
		Timestamp:     epochSeconds(n.now()),
		RPC:           id,
		URL:           fmt.Sprintf("%s/catalog/%s_%d", n.baseURL, *detail.Slug, id),
		Title:         *detail.Name,
		MarketingTags: marketingTags(detail.Stickers),
		Brand:         stringOrEmpty(detail.Producer),
		Section:       n.section(detail.Category),
		PriceData:     n.priceData(detail.Cost, detail.OldCost),
		Stock: domain.Stock{
			InStock: detail.InStock,
			Count:   0, // the API exposes availability only, never a quantity
		},
		Assets:   n.assets(detail.Images),
		Metadata: n.metadata(detail),
		Variants: 1,
	}, nil
}

func marketingTags(stickers []domain.Sticker) []string {
	tags := make([]string, 0, len(stickers))
	for _, sticker := range stickers {
		tags = append(tags, sticker.Name)
	}
	return tags
}

func (n *Normalizer) section(category domain.Category) []string {
	section := make([]string, 0, len(n.breadcrumbRoots)+len(category.Parents)+1)
	section = append(section, n.breadcrumbRoots...)
	for _, parent := range category.Parents {
		section = append(section, parent.Name)
	}
	return append(section, category.Name)
}

// priceData applies the per-field defaults: a null cost is 0, a null oldCost
// falls back to cost, and the sale tag needs both prices non-zero. An oldCost
// below cost produces a negative discount, which is kept as is.
func (n *Normalizer) priceData(cost, oldCost *float64) domain.PriceData {
	current := floatOrZero(cost)

	original := current
	if oldCost != nil {
		original = *oldCost
	}

	var saleTag string
	if current != 0 && oldCost != nil && *oldCost != 0 {
		saleTag = fmt.Sprintf("%s %s%%", n.saleTagPrefix, formatPercent(100.0-(current / *oldCost)*100))
	}

	return domain.PriceData{
		Current:  current,
		Original: original,
		SaleTag:  saleTag,
	}
}

func (n *Normalizer) assets(paths []string) domain.Assets {
	images := make([]string, 0, len(paths))
	for _, path := range paths {
		images = append(images, n.baseURL+path)
	}

	var mainImage string
	if len(images) > 0 {
		mainImage = images[0]
	}

	return domain.Assets{
		MainImage: mainImage,
		SetImages: images,
		View360:   []string{},
		Video:     []string{},
	}
}

func (n *Normalizer) metadata(detail *domain.ProductDetail) domain.AttributeMap {
	attrs := n.segmenter.Segment(stringOrEmpty(detail.Description))
	attrs[domain.MetadataArticleKey] = strconv.FormatInt(*detail.ID, 10)
	attrs[domain.MetadataCountryKey] = stringOrEmpty(detail.Country)
	return attrs
}

// formatPercent renders v in shortest form, keeping one decimal place for
// whole numbers: 50 -> "50.0", 33.5 -> "33.5". Magnitudes below 1e-4 or from
// 1e16 up switch to exponent form, "5e-05", the way float repr does.
func formatPercent(v float64) string {
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
