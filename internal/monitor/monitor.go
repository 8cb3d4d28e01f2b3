package monitor

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// PaymentRequestSchema describes the body of every payment operation.
//
//go:embed schemas/payment_request.json
var PaymentRequestSchema string

// ContractMonitor validates incoming requests against a JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor creates a ContractMonitor from a schema file. The
// path should be absolute or relative to the working directory.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + schemaPath))
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", schemaPath, err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// NewContractMonitorFromString creates a ContractMonitor from an inline schema.
func NewContractMonitorFromString(schemaJSON string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("error compiling schema: %w", err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// NewPaymentRequestMonitor validates payment operation bodies.
func NewPaymentRequestMonitor() (*ContractMonitor, error) {
	return NewContractMonitorFromString(PaymentRequestSchema)
}

// Validate checks requestBody against the schema. Violations are reported
// as "field: description", with "(root)" for the document itself. The
// error return is reserved for bodies that are not JSON at all.
func (cm *ContractMonitor) Validate(requestBody []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(requestBody))
	if err != nil {
		return false, nil, fmt.Errorf("error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, re.Field()+": "+re.Description())
	}
	sort.Strings(violations)
	return false, violations, nil
}

// FormatErrors formats a slice of validation error strings into a single string.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
