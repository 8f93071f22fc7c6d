package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"pipe-company/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type testProductRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"omitempty,slug"`
	Category    string `json:"category" validate:"required,product_category"`
	StockStatus string `json:"stock_status" validate:"required,stock_status"`
	Quantity    int    `json:"quantity" validate:"gte=1,lte=100000"`
}

type testQuoteRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"omitempty,phone"`
	Status string `json:"status" validate:"omitempty,quote_status"`
	Role   string `json:"role" validate:"omitempty,role"`
	Doc    string `json:"doc_type" validate:"omitempty,doc_type"`
}

func decode(t *testing.T, body map[string]interface{}, v interface{}) error {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/test", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return DecodeAndValidate(req, v)
}

// Feature: pipe-company, Property 28: Required field validation works
func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing required fields are rejected", prop.ForAll(
		func(withName, withCategory, withStock bool) bool {
			body := map[string]interface{}{"quantity": 5}
			if withName {
				body["name"] = "Ball Valve"
			}
			if withCategory {
				body["category"] = domain.CategoryValves
			}
			if withStock {
				body["stock_status"] = domain.StockInStock
			}

			var req testProductRequest
			err := decode(t, body, &req)

			if withName && withCategory && withStock {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: pipe-company, Property 29: Enumerated fields accept exactly their domain values
func TestProperty_EnumTagsAcceptOnlyDomainValues(t *testing.T) {
	properties := gopter.NewProperties(nil)

	known := map[string]bool{}
	for _, c := range domain.ProductCategories {
		known[c] = true
	}

	properties.Property("product_category matches the domain list", prop.ForAll(
		func(category string) bool {
			var req testProductRequest
			err := decode(t, map[string]interface{}{
				"name":         "Flange",
				"category":     category,
				"stock_status": domain.StockLow,
				"quantity":     1,
			}, &req)
			return (err == nil) == known[category]
		},
		gen.OneGenOf(
			gen.OneConstOf(domain.CategoryPipes, domain.CategoryFittings, domain.CategoryValves, domain.CategoryFlanges, domain.CategoryAccessories),
			gen.AlphaString(),
		),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCustomTags(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]interface{}
		valid bool
	}{
		{"valid minimal", map[string]interface{}{"email": "a@b.co"}, true},
		{"valid phone", map[string]interface{}{"email": "a@b.co", "phone": "+1 (555) 010-2030"}, true},
		{"phone with letters", map[string]interface{}{"email": "a@b.co", "phone": "call me"}, false},
		{"phone too short", map[string]interface{}{"email": "a@b.co", "phone": "12"}, false},
		{"valid status", map[string]interface{}{"email": "a@b.co", "status": "in_review"}, true},
		{"unknown status", map[string]interface{}{"email": "a@b.co", "status": "archived"}, false},
		{"valid role", map[string]interface{}{"email": "a@b.co", "role": "editor"}, true},
		{"unknown role", map[string]interface{}{"email": "a@b.co", "role": "root"}, false},
		{"valid doc type", map[string]interface{}{"email": "a@b.co", "doc_type": "datasheet"}, true},
		{"unknown doc type", map[string]interface{}{"email": "a@b.co", "doc_type": "brochure"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req testQuoteRequest
			err := decode(t, tt.body, &req)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSlugTag(t *testing.T) {
	for slug, valid := range map[string]bool{
		"copper-pipe-15mm": true,
		"pipe":             true,
		"Copper-Pipe":      false,
		"copper--pipe":     false,
		"-copper":          false,
		"copper pipe":      false,
	} {
		var req testProductRequest
		err := decode(t, map[string]interface{}{
			"name":         "x",
			"slug":         slug,
			"category":     domain.CategoryPipes,
			"stock_status": domain.StockInStock,
			"quantity":     1,
		}, &req)
		if (err == nil) != valid {
			t.Errorf("slug %q: valid=%v, err=%v", slug, valid, err)
		}
	}
}

func TestFormatValidationErrorsUsesJSONNames(t *testing.T) {
	var req testProductRequest
	err := decode(t, map[string]interface{}{
		"name":         "Elbow",
		"category":     "widgets",
		"stock_status": "plenty",
		"quantity":     0,
	}, &req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	got := map[string]string{}
	for _, ve := range FormatValidationErrors(err) {
		got[ve.Field] = ve.Message
	}

	for _, field := range []string{"category", "stock_status", "quantity"} {
		if got[field] == "" {
			t.Errorf("expected an error for %s, got %v", field, got)
		}
	}
	if got["quantity"] != "Value must be greater than or equal to 1" {
		t.Errorf("unexpected quantity message %q", got["quantity"])
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", bytes.NewReader([]byte("{not json")))
	var v testProductRequest
	if err := DecodeAndValidate(req, &v); err == nil {
		t.Fatal("expected decode error")
	}
	if errs := FormatValidationErrors(json.Unmarshal([]byte("{"), &v)); len(errs) != 0 {
		t.Errorf("non-validation errors should format to nothing, got %v", errs)
	}
}
