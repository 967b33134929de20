package validator

import "strings"

// FieldError pairs a field with the reason code of its first failing rule.
type FieldError struct {
	Field string
	Code  string
}

// FieldErrors is ordered by field declaration order.
type FieldErrors []FieldError

// Code returns the reason code reported for field, if any.
func (f FieldErrors) Code(field string) (string, bool) {
	for _, fe := range f {
		if fe.Field == field {
			return fe.Code, true
		}
	}
	return "", false
}

// Fields lists the invalid fields in order.
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for _, fe := range f {
		out = append(out, fe.Field)
	}
	return out
}

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, fe := range f {
		parts = append(parts, fe.Field+": "+fe.Code)
	}
	return strings.Join(parts, "; ")
}
