package where

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/schema"
)

const validateSchemaYAML = `
shared:
  status:
    kind: selection
    enum: status
enums:
  status: [open, done]
types:
  objective:
    location: objectives
    shared: [status]
    fields:
      title:
        kind: text
    children:
      task:
        fields:
          due:
            kind: date
`

func validateSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Load([]byte(validateSchemaYAML))
	if err != nil {
		t.Fatalf("schema.Load: %v", err)
	}
	return s
}

func TestValidateFieldsKnown(t *testing.T) {
	s := validateSchema(t)
	exprs := []string{
		"status == done and due > '2026-01-01'",
		"file.size > 100",
		"type == objective",
		"objective-type == task",
	}
	if err := ValidateFields(exprs, s, "objective/task"); err != nil {
		t.Errorf("ValidateFields: %v", err)
	}
}

func TestValidateFieldsUnknown(t *testing.T) {
	s := validateSchema(t)
	err := ValidateFields([]string{"priority > 2 and status == done"}, s, "objective")
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	var wve *apperr.WhereValidationError
	if !errors.As(err, &wve) {
		t.Fatalf("error type %T", err)
	}
	if len(wve.Problems) != 1 || !strings.Contains(wve.Problems[0], `"priority"`) {
		t.Errorf("problems = %v", wve.Problems)
	}
}

func TestValidateFieldsSyntax(t *testing.T) {
	s := validateSchema(t)
	err := ValidateFields([]string{"status =="}, s, "")
	var wve *apperr.WhereValidationError
	if !errors.As(err, &wve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(wve.Problems) != 1 || !strings.Contains(wve.Problems[0], "malformed") {
		t.Errorf("problems = %v", wve.Problems)
	}
}

func TestValidateFieldsNoTypeSkipsFieldCheck(t *testing.T) {
	s := validateSchema(t)
	// Without a type there is no field set to check against; only syntax.
	if err := ValidateFields([]string{"anything == goes"}, s, ""); err != nil {
		t.Errorf("ValidateFields: %v", err)
	}
}

func TestValidateFieldsUnknownType(t *testing.T) {
	s := validateSchema(t)
	if err := ValidateFields([]string{"status == done"}, s, "ghost"); err == nil {
		t.Error("expected error for unknown type")
	}
}
