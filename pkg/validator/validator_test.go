package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Title    string `json:"title" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=success error warning info"`
	Duration int    `json:"duration_ms" validate:"gte=0"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Title:    "Connection restored",
		Kind:     "success",
		Duration: 5000,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Title:    "",
		Kind:     "fatal",
		Duration: -1,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundKind := false
	for _, v := range vErrs {
		if v.Field == "kind" {
			foundKind = true
		}
	}

	if !foundKind {
		t.Fatal("expected kind field to be present in validation errors")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("topic", func(fl validator.FieldLevel) bool {
		return fl.Field().String() != ""
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"topic"`
	}

	if err := ValidateStruct(custom{Value: "dashboard"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: ""}); err == nil {
		t.Fatal("expected validation to fail for empty value")
	}
}
