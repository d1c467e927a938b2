package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedGeneration is returned when generated content cannot be
// decoded into the expected shape.
var ErrMalformedGeneration = errors.New("malformed generated content")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedGeneration, fmt.Sprintf(format, args...))
}
