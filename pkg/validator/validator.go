package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError describes one failed rule on one field.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects every failed rule for a payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, failure := range v {
		if failure.Param != "" {
			parts[i] = failure.Field + " failed on " + failure.Tag + "=" + failure.Param
		} else {
			parts[i] = failure.Field + " failed on " + failure.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct runs the struct tag rules on s. Field names in the
// returned failures use the json tag when one is present.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, ValidationError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// ValidateVar checks a single value against a rule expression, for
// inputs that arrive outside a struct payload such as path parameters.
func ValidateVar(value interface{}, rules string) error {
	return getValidator().Var(value, rules)
}

// RegisterValidation installs a custom rule under the given tag.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name := fld.Tag.Get("json")
	if name == "" {
		return fld.Name
	}
	if comma := strings.Index(name, ","); comma != -1 {
		name = name[:comma]
	}
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
