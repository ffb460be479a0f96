package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator returns the shared validator, reporting fields by their json
// names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		validate = v
	})
	return validate
}

// parseJSON decodes a JSON request body into T and validates it.
func parseJSON[T any](r *http.Request) (T, error) {
	var zero T
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var dst T
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, fmt.Errorf("empty body")
		}
		return zero, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return zero, fmt.Errorf("unexpected trailing data")
	}

	if err := validateStruct(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// validateStruct runs the validator and flattens the first failure into a
// short message.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", fe.Field())
		case "min", "gte":
			return fmt.Errorf("%s must be at least %s", fe.Field(), fe.Param())
		case "max", "lte":
			return fmt.Errorf("%s must be at most %s", fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%s is invalid", fe.Field())
		}
	}
	return err
}
