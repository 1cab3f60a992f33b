package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Bind decodes the JSON body into obj, validates it and sanitizes its strings.
// The returned error is already classified: an unreadable body is a
// malformed request, a body that decodes but breaks a rule is invalid input.
func Bind(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return classify(err)
	}
	SanitizeStruct(obj)
	return nil
}

func classify(err error) error {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
		validErrs   validator.ValidationErrors
	)

	switch {
	case errors.Is(err, ErrNotANumber), errors.Is(err, ErrAmountOutOfRange):
		return apperror.ErrInvalidAmount()
	case errors.As(err, &syntaxErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &maxBytesErr):
		return apperror.ErrMalformedRequest(err)
	case errors.As(err, &validErrs):
		fields := make(map[string]string, len(validErrs))
		for _, fe := range validErrs {
			fields[fe.Field()] = describe(fe)
		}
		return apperror.ErrInvalidInput(fields)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return apperror.ErrMalformedRequest(err)
		}
		return apperror.ErrInvalidInput(map[string]string{field: "must be a " + typeErr.Type.String()})
	default:
		return apperror.Wrap(apperror.KindInvalidInput, "VAL_001", "Invalid input", err)
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "currency_code":
		return "must be a 3-letter currency code"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return "is invalid"
	}
}
