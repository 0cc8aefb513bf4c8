package history

import "errors"

// ErrNotFound matches every NotFoundError with errors.Is.
var ErrNotFound = errors.New("record not found")

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "record not found"
	}

	return "record not found: " + e.ID
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
