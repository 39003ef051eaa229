package task

import "apteka/parser/internal/domain"

type ProductTask struct {
	ProductID int64              `json:"product_id"`
	Slug      domain.CatalogSlug `json:"slug"` // Slug whose walk discovered the product
}

func (t *ProductTask) TaskType() string {
	return "ProductTask"
}

func (t *ProductTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
