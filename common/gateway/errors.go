package gateway

import (
	"errors"
	"fmt"
)

// Error taxonomy. Match with errors.Is.
var (
	// ErrValidation is the parent of every bad-input error; nothing is sent to storage.
	ErrValidation = errors.New("validation failed")

	ErrMissingFile     = fmt.Errorf("%w: file is required", ErrValidation)
	ErrMissingCustomer = fmt.Errorf("%w: customerId is required", ErrValidation)
	ErrInvalidCustomer = fmt.Errorf("%w: customerId must not contain '/' or be a dot segment", ErrValidation)
	ErrMissingFilename = fmt.Errorf("%w: filename is required", ErrValidation)
	ErrInvalidFilename = fmt.Errorf("%w: filename must not contain '/' or be a dot segment", ErrValidation)

	// ErrNotFound is returned when a delete targets an absent object.
	ErrNotFound = errors.New("photo not found")

	// ErrUnsupportedMediaType covers a disallowed MIME type or an oversized payload.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrStorage wraps failures reported by the backing object store.
	ErrStorage = errors.New("storage failure")

	// ErrConfiguration is returned when the gateway is built without its collaborators.
	ErrConfiguration = errors.New("configuration error")
)
