package middleware

import (
	"encoding/json"
	"net/http"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"pipe-company/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{6,32}$`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	registerOneOf("product_category", domain.ProductCategories)
	registerOneOf("stock_status", domain.StockStatuses)
	registerOneOf("quote_status", domain.QuoteStatuses)
	registerOneOf("doc_type", domain.DocumentTypes)
	registerOneOf("role", []string{domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer})

	validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= 100 && slugPattern.MatchString(s)
	})
}

func registerOneOf(tag string, allowed []string) {
	validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	})
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	case "oneof":
		return "Value must be one of: " + e.Param()
	case "url", "uri":
		return "Invalid URL"
	case "uuid":
		return "Invalid identifier"
	case "product_category":
		return "Value must be one of: " + strings.Join(domain.ProductCategories, ", ")
	case "stock_status":
		return "Value must be one of: " + strings.Join(domain.StockStatuses, ", ")
	case "quote_status":
		return "Value must be one of: " + strings.Join(domain.QuoteStatuses, ", ")
	case "doc_type":
		return "Value must be one of: " + strings.Join(domain.DocumentTypes, ", ")
	case "role":
		return "Value must be one of: admin, editor, viewer"
	case "phone":
		return "Invalid phone number"
	case "slug":
		return "Slug may contain only lowercase letters, digits and single dashes"
	default:
		return "Invalid value"
	}
}
