package product

import (
	"github.com/google/uuid"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	CategoryID *uuid.UUID           `json:"category_id,omitempty"`
	Status     *enums.ProductStatus `json:"status,omitempty"`
	Query      string               `json:"q,omitempty"`
}

// ListProductsInput captures pagination and filters for a product listing.
// Public callers only ever see active products; Status is honoured only when
// IncludeInactive is set.
type ListProductsInput struct {
	Filters         ProductListFilters
	Pagination      pagination.Params
	IncludeInactive bool
}

// ProductListResult is one page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor"`
}
