package domain

import "errors"

// Error kinds shared by every layer. Wrap them with fmt.Errorf("...: %w")
// and classify with errors.Is.
var (
	// ErrAuthentication: missing, malformed or expired credential. Fatal to the connection.
	ErrAuthentication = errors.New("authentication error")
	// ErrValidation: malformed event payload. Never fatal.
	ErrValidation = errors.New("validation error")
	// ErrNotFound: the referenced room or message does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrPersistence: the durable store call failed.
	ErrPersistence = errors.New("persistence error")
)
