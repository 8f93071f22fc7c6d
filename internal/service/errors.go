package service

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks business-rule violations the caller can fix. The wrapped
// message names the offending field.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
