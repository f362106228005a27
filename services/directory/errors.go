package directory

import "errors"

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("record already exists")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
