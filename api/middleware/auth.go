package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Nikul30701/E-Commerce-Plateform/api/responses"
	pkgAuth "github.com/Nikul30701/E-Commerce-Plateform/pkg/auth"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the caller
// identity and role.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r.Context(), cfg, r.Header.Get("Authorization"), logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth behaves like Auth when an Authorization header is present and
// lets anonymous requests through untouched.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if strings.TrimSpace(raw) == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx, err := authenticate(r.Context(), cfg, raw, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, header string, logg *logger.Logger) (context.Context, error) {
	token := strings.TrimSpace(header)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	ctx = WithUserID(ctx, claims.UserID.String())
	ctx = WithRole(ctx, claims.Role.String())
	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.UserID.String())
		ctx = logg.WithRole(ctx, claims.Role.String())
	}
	return ctx, nil
}
