package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValWithTags pairs a value with the validator tags it must satisfy.
type ValWithTags struct {
	Value interface{}
	Tag   string
}

// ValidationMap maps a field name (used in error messages) to its value and tags.
type ValidationMap map[string]ValWithTags

// ErrInvalidInput lists every field that failed validation.
type ErrInvalidInput struct {
	Fields  []string
	Reasons []string
}

func (e ErrInvalidInput) Error() string {
	parts := make([]string, len(e.Fields))
	for i := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", e.Fields[i], e.Reasons[i])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// New returns a validator with the tags this service registers.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateFields checks each entry of m with v. Field order in the error is stable.
func ValidateFields(v *validator.Validate, m ValidationMap) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var invalid ErrInvalidInput
	for _, name := range names {
		field := m[name]
		if err := v.Var(field.Value, field.Tag); err != nil {
			invalid.Fields = append(invalid.Fields, name)
			invalid.Reasons = append(invalid.Reasons, reason(err))
		}
	}
	if len(invalid.Fields) > 0 {
		return invalid
	}
	return nil
}

func reason(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("failed '%s=%s'", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed '%s'", fe.Tag())
}
