package storage

import "errors"

// NotFoundError is returned when a profile doesn't exist in the store.
type NotFoundError struct {
	ExternalID string
}

func (e NotFoundError) Error() string {
	if e.ExternalID == "" {
		return "profile not found"
	}

	return "profile not found: " + e.ExternalID
}

// IsNotFound reports whether err, or any error it wraps, is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
