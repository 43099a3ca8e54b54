// Package serrors provides coded sentinel errors that survive wrapping.
package serrors

import "fmt"

type Base struct {
	Code    string
	Message string
	Details string
}

func NewError(code, message, details string) *Base {
	return &Base{Code: code, Message: message, Details: details}
}

func (e *Base) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

// WithDetails returns a copy carrying occurrence-specific details.
func (e *Base) WithDetails(details string) *Base {
	return &Base{Code: e.Code, Message: e.Message, Details: details}
}

// Is matches errors by code so wrapped copies compare equal to their sentinel.
func (e *Base) Is(target error) bool {
	t, ok := target.(*Base)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
