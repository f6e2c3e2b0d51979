package schema

import (
	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// RequiredRideFields must be present and non-blank when a ride is created.
var RequiredRideFields = []string{DateColumn, "FROM", "TO"}

// FieldValidator checks client input before it is mapped to a statement.
type FieldValidator struct {
	required []string
}

// NewFieldValidator creates a validator requiring the given fields.
func NewFieldValidator(required []string) *FieldValidator {
	return &FieldValidator{required: required}
}

// Missing returns the required fields that are absent or blank in input,
// in declaration order.
func (v *FieldValidator) Missing(input map[string]interface{}) []string {
	var missing []string
	for _, name := range v.required {
		if ToNullableString(input[name]) == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// ValidateRequired returns a *core.ValidationError listing the missing
// required fields, or nil.
func (v *FieldValidator) ValidateRequired(input map[string]interface{}) error {
	if missing := v.Missing(input); len(missing) > 0 {
		return core.NewValidationError("Missing required fields", missing...)
	}
	return nil
}
