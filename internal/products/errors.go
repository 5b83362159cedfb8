package product

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

// InsufficientStock reports that requested units of p exceed its stock.
func InsufficientStock(p *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("only %d units of %s available", p.Stock, p.Name),
	).WithDetails(map[string]any{
		"product_id":   p.ID.String(),
		"product_name": p.Name,
		"available":    p.Stock,
		"requested":    requested,
	})
}

// Unavailable reports a product that is missing or not purchasable.
func Unavailable(id uuid.UUID, name string) error {
	msg := "product not available"
	if name != "" {
		msg = fmt.Sprintf("product %s is no longer available", name)
	}
	details := map[string]any{"product_id": id.String()}
	if name != "" {
		details["product_name"] = name
	}
	return pkgerrors.New(pkgerrors.CodeUnknownReference, msg).WithDetails(details)
}
