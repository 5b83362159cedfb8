package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nikul30701/E-Commerce-Plateform/api/middleware"
	"github.com/Nikul30701/E-Commerce-Plateform/api/responses"
	"github.com/Nikul30701/E-Commerce-Plateform/api/validators"
	productsvc "github.com/Nikul30701/E-Commerce-Plateform/internal/products"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

func ListCategories(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

// ListProducts serves the public catalog. Callers holding the draft-view
// capability may pass include_inactive=true and filter by status.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		params, err := paginationFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := validators.ParseQueryUUID(r, "category")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		input := productsvc.ListProductsInput{
			Filters: productsvc.ProductListFilters{
				CategoryID: categoryID,
				Query:      validators.SanitizeString(q.Get("q"), 100),
			},
			Pagination:      params,
			IncludeInactive: includeInactive && canViewDrafts(r),
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" && input.IncludeInactive {
			status, err := enums.ParseProductStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Filters.Status = &status
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id, canViewDrafts(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func canViewDrafts(r *http.Request) bool {
	return middleware.HasCapability(middleware.RoleFromContext(r.Context()), middleware.CapViewDraftCatalog)
}

type createCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty" validate:"omitempty,max=500"`
}

func AdminCreateCategory(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.CreateCategory(r.Context(), productsvc.CreateCategoryInput{
			Name:        payload.Name,
			Slug:        payload.Slug,
			Description: payload.Description,
			Image:       payload.Image,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

type createProductRequest struct {
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Name        string           `json:"name" validate:"required,max=200"`
	Slug        string           `json:"slug" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty"`
	Price       decimal.Decimal  `json:"price" validate:"money"`
	Discount    *decimal.Decimal `json:"discount,omitempty" validate:"omitempty,money"`
	Stock       int              `json:"stock" validate:"gte=0"`
	Image       *string          `json:"image,omitempty" validate:"omitempty,max=500"`
	Status      string           `json:"status" validate:"omitempty,oneof=draft active out_of_stock"`
}

func (p createProductRequest) toInput() productsvc.CreateProductInput {
	input := productsvc.CreateProductInput{
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Image:       p.Image,
		Status:      enums.ProductStatus(p.Status),
	}
	if p.Discount != nil {
		input.Discount = *p.Discount
	}
	return input
}

func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Slug        *string          `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,money"`
	Discount    *decimal.Decimal `json:"discount,omitempty" validate:"omitempty,money"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Image       *string          `json:"image,omitempty" validate:"omitempty,max=500"`
	Status      *string          `json:"status,omitempty" validate:"omitempty,oneof=draft active out_of_stock"`
}

func (p updateProductRequest) toInput() productsvc.UpdateProductInput {
	input := productsvc.UpdateProductInput{
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		Discount:    p.Discount,
		Stock:       p.Stock,
		Image:       p.Image,
	}
	if p.Status != nil {
		status := enums.ProductStatus(*p.Status)
		input.Status = &status
	}
	return input
}

func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("catalog"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
