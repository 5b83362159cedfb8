package validators

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

var tagMessages = map[string]string{
	"required": "is required",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
	"gt":       "must be greater than %s",
	"gte":      "must be greater than or equal to %s",
	"lte":      "must be less than or equal to %s",
	"oneof":    "must be one of [%s]",
	"uuid":     "must be a valid uuid",
	"money":    "must be a non-negative amount with at most two decimals",
}

// formatValidationErrors maps each failing field to a readable message keyed
// by its JSON name.
func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	if fe.Param() == "" {
		return msg
	}
	return fmt.Sprintf(msg, fe.Param())
}
