package middleware

import (
	"net/http"

	"github.com/Nikul30701/E-Commerce-Plateform/api/responses"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

// Capability names one guarded operation.
type Capability string

const (
	CapShop             Capability = "shop"
	CapManageCatalog    Capability = "catalog.manage"
	CapViewAllOrders    Capability = "orders.view_all"
	CapSetOrderStatus   Capability = "orders.set_status"
	CapViewDraftCatalog Capability = "catalog.view_drafts"
)

// capabilities is the permission table consulted by Require. A role holds
// exactly the capabilities listed for it.
var capabilities = map[enums.Role][]Capability{
	enums.RoleCustomer: {CapShop},
	enums.RoleAdmin: {
		CapShop,
		CapManageCatalog,
		CapViewAllOrders,
		CapSetOrderStatus,
		CapViewDraftCatalog,
	},
}

// HasCapability reports whether role grants capability.
func HasCapability(role string, capability Capability) bool {
	for _, c := range capabilities[enums.Role(role)] {
		if c == capability {
			return true
		}
	}
	return false
}

// Require rejects callers whose role lacks capability. It must run after Auth.
func Require(capability Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasCapability(RoleFromContext(r.Context()), capability) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions").
					WithDetails(map[string]any{"capability": string(capability)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
