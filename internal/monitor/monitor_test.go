package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewContractMonitor(t *testing.T) {
	testSchemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "TestSchema",
		"type": "object",
		"properties": { "name": { "type": "string" } },
		"required": ["name"]
	}`
	schemaDir := t.TempDir()
	schemaFile := filepath.Join(schemaDir, "test_schema.json")
	if err := os.WriteFile(schemaFile, []byte(testSchemaContent), 0644); err != nil {
		t.Fatalf("Failed to write test schema file: %v", err)
	}

	t.Run("SuccessfulLoad", func(t *testing.T) {
		cm, err := NewContractMonitor(schemaFile)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cm == nil || cm.schema == nil {
			t.Fatal("Expected a compiled schema")
		}
		valid, errs, err := cm.Validate([]byte(`{"name":"ok"}`))
		if err != nil || !valid || len(errs) != 0 {
			t.Fatalf("Expected valid document, got valid=%v errs=%v err=%v", valid, errs, err)
		}
	})

	t.Run("SchemaFileNotFound", func(t *testing.T) {
		_, err := NewContractMonitor(filepath.Join(schemaDir, "missing.json"))
		if err == nil {
			t.Fatal("Expected error for non-existent schema, got nil")
		}
		if !strings.Contains(err.Error(), "error loading or compiling schema") {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("InvalidSchemaSyntax", func(t *testing.T) {
		invalidSchemaFile := filepath.Join(schemaDir, "invalid_schema.json")
		if err := os.WriteFile(invalidSchemaFile, []byte("{invalid_json"), 0644); err != nil {
			t.Fatalf("Failed to write invalid test schema file: %v", err)
		}
		if _, err := NewContractMonitor(invalidSchemaFile); err == nil {
			t.Fatal("Expected error for invalid schema syntax, got nil")
		}
	})
}

func TestPaymentRequestMonitor(t *testing.T) {
	cm, err := NewPaymentRequestMonitor()
	if err != nil {
		t.Fatalf("embedded schema must compile: %v", err)
	}

	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"StringAmount", `{"token":"pm_1","amount":"10.99","currency":"usd"}`, true},
		{"NumberAmount", `{"token":"pm_1","amount":10,"currency":"EUR","reuse_source":true}`, true},
		{"WithShipping", `{"token":"pm_1","amount":"1","currency":"usd","shipping":{"first_name":"Ada","country":"GB"}}`, true},
		{"MissingToken", `{"amount":"10.99","currency":"usd"}`, false},
		{"EmptyToken", `{"token":"","amount":"10.99","currency":"usd"}`, false},
		{"BadAmount", `{"token":"pm_1","amount":"ten","currency":"usd"}`, false},
		{"NegativeAmount", `{"token":"pm_1","amount":-1,"currency":"usd"}`, false},
		{"LargestAmount", `{"token":"pm_1","amount":"999999999999999.99","currency":"usd"}`, true},
		{"OversizedStringAmount", `{"token":"pm_1","amount":"184467440737095516.17","currency":"usd"}`, false},
		{"OversizedNumberAmount", `{"token":"pm_1","amount":92233720368547758,"currency":"usd"}`, false},
		{"BadCurrency", `{"token":"pm_1","amount":"1","currency":"dollars"}`, false},
		{"BadCountry", `{"token":"pm_1","amount":"1","currency":"usd","shipping":{"country":"GBR"}}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			valid, errs, err := cm.Validate([]byte(tc.body))
			if err != nil {
				t.Fatalf("Unexpected validation error: %v", err)
			}
			if valid != tc.valid {
				t.Fatalf("Expected valid=%v, got %v (%s)", tc.valid, valid, FormatErrors(errs))
			}
			if !valid && len(errs) == 0 {
				t.Fatal("Expected error descriptions for invalid document")
			}
		})
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	cm, err := NewPaymentRequestMonitor()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := cm.Validate([]byte("{not json")); err == nil {
		t.Fatal("Expected error for malformed document")
	}
}

func TestFormatErrors(t *testing.T) {
	if got := FormatErrors(nil); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
	got := FormatErrors([]string{"a is required", "b must be string"})
	want := "Validation errors: a is required; b must be string"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestValidate_ViolationsNameFields(t *testing.T) {
	cm, err := NewPaymentRequestMonitor()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	valid, errs, err := cm.Validate([]byte(`{"token":"tok_1","amount":"1.00","currency":"EURO"}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if valid {
		t.Fatal("Expected a four-letter currency to be rejected")
	}
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "currency: ") {
		t.Fatalf("Expected one currency violation, got %v", errs)
	}
}
