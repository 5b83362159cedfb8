package controllers

import (
	"net/http"

	"github.com/Nikul30701/E-Commerce-Plateform/api/responses"
	"github.com/Nikul30701/E-Commerce-Plateform/api/validators"
	checkoutsvc "github.com/Nikul30701/E-Commerce-Plateform/internal/checkout"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("checkout"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.CheckoutInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Notes != nil {
			notes := validators.SanitizeString(*payload.Notes, 2000)
			payload.Notes = &notes
		}

		order, err := svc.Execute(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
