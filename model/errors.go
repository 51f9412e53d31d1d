package model

import (
	"errors"
	"fmt"
)

// ErrModel is the sentinel for every structural problem with a model.
var ErrModel = errors.New("model error")

// Error is a structural problem attributed to one variable of a model.
type Error struct {
	Variable string
	Reason   string
}

func (e *Error) Error() string {
	if e.Variable == "" {
		return "model: " + e.Reason
	}
	return fmt.Sprintf("model: variable %q: %s", e.Variable, e.Reason)
}

func (e *Error) Unwrap() error { return ErrModel }

// Errorf builds an *Error for variable with a formatted reason.
func Errorf(variable, format string, args ...interface{}) error {
	return &Error{Variable: variable, Reason: fmt.Sprintf(format, args...)}
}
