package task

import "apteka/parser/internal/domain"

// ProductFailureTask records a product whose record was dropped. It is never retried.
type ProductFailureTask struct {
	ProductID    int64              `json:"product_id"`
	Slug         domain.CatalogSlug `json:"slug"`
	Error        string             `json:"error"`
	FailureStage string             `json:"failure_stage"` // "fetch", "normalize" or "save"
}

func (t *ProductFailureTask) TaskType() string {
	return "ProductFailureTask"
}

func (t *ProductFailureTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
