package configtree

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned when creating a value whose identity is
// already taken.
var ErrDuplicateKey = errors.New("config value already exists")

// NetworkError wraps a failed store call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError reports a field that blocks a request before it is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
