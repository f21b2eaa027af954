// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	styleCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	skuFilterPattern = regexp.MustCompile(`^[A-Za-z0-9_]+-(\*|[^/?#*]+)$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("style_code", validateStyleCode)
	validate.RegisterValidation("sku_filter", validateSKUFilter)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateVar checks a single value against a tag list such as "required,style_code".
func ValidateVar(v interface{}, tag string) error {
	return validate.Var(v, tag)
}

func validateStyleCode(fl validator.FieldLevel) bool {
	return styleCodePattern.MatchString(fl.Field().String())
}

// SKU filters are STYLE-COLOUR or STYLE-*.
func validateSKUFilter(fl validator.FieldLevel) bool {
	return skuFilterPattern.MatchString(fl.Field().String())
}

// SKUFilter builds the inventory filter for a style and optional colour.
func SKUFilter(styleCode, colour string) string {
	if strings.TrimSpace(colour) == "" {
		return styleCode + "-*"
	}
	return styleCode + "-" + colour
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must contain at least " + e.Param() + " item(s)"
	case "style_code":
		return e.Field() + " must be a catalog style code"
	case "sku_filter":
		return e.Field() + " must look like STYLE-COLOUR or STYLE-*"
	default:
		return e.Field() + " is invalid"
	}
}
