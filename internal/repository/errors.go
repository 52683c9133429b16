package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// DuplicateError is returned when a store-level unique constraint rejects a write.
type DuplicateError struct {
	Field string // email | username
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateField returns the offending field of a duplicate error, or "".
func DuplicateField(err error) string {
	var d *DuplicateError
	if errors.As(err, &d) {
		return d.Field
	}
	return ""
}
