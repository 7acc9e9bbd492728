package store

import "errors"

// Standard resource store errors.
//
// These give protocol handlers a backend-independent way to detect common
// failures. Implementations wrap them with context:
//
//	return nil, fmt.Errorf("resource %s: %w", name, store.ErrResourceNotFound)
//
// and handlers map them to wire responses:
//
//	if errors.Is(err, store.ErrResourceNotFound) {
//	    // -> 404 Not Found
//	}
var (
	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvalidName indicates a resource name that escapes the store root
	// or is otherwise unusable as a key.
	ErrInvalidName = errors.New("invalid resource name")
)
