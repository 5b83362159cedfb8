package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Nikul30701/E-Commerce-Plateform/api/middleware"
	"github.com/Nikul30701/E-Commerce-Plateform/api/validators"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/pagination"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func paginationFromRequest(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
