package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"mailadmin/services/directory"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("domainname", func(fl validator.FieldLevel) bool {
		return directory.ValidDomainName(fl.Field().String())
	})
	return v
}

// validateRequest writes a 400 with per-field details and returns false when
// req fails validation.
func (a *API) validateRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	err := a.validate.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		a.internalError(w, r, err)
		return false
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Validation failed",
		"details": details,
	})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "domainname":
		return "Invalid domain name format"
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
