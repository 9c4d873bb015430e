package errors

import (
	"errors"
	"fmt"
)

// ErrResourceNotFound is returned when an identifier is not in a document's
// resource table.
var ErrResourceNotFound = errors.New("resource not found")

// MalformedDocumentError means the document has no readable resource table or
// its package structure could not be parsed.
type MalformedDocumentError struct {
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Err)
	}
	return "malformed document: " + e.Reason
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// NewMalformedDocumentError creates a MalformedDocumentError
func NewMalformedDocumentError(reason string, err error) *MalformedDocumentError {
	return &MalformedDocumentError{Reason: reason, Err: err}
}

// IsMalformedDocumentError reports whether err is a MalformedDocumentError (even when wrapped).
func IsMalformedDocumentError(err error) bool {
	var docErr *MalformedDocumentError
	return errors.As(err, &docErr)
}
