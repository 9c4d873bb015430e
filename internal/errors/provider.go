package errors

import (
	"errors"
	"fmt"
)

// ProviderCallError is a failed description request for a single image
type ProviderCallError struct {
	Identifier string
	Provider   string
	Cause      error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("%s: describe %q: %v", e.Provider, e.Identifier, e.Cause)
}

func (e *ProviderCallError) Unwrap() error {
	return e.Cause
}

// NewProviderCallError creates a ProviderCallError for the given image identifier
func NewProviderCallError(provider, identifier string, cause error) *ProviderCallError {
	return &ProviderCallError{Identifier: identifier, Provider: provider, Cause: cause}
}

// IsProviderCallError reports whether err is a ProviderCallError (even when wrapped).
func IsProviderCallError(err error) bool {
	var callErr *ProviderCallError
	return errors.As(err, &callErr)
}

// ProviderClientError is a failure creating or releasing a provider client
type ProviderClientError struct {
	Provider string
	Op       string // "create" or "close"
	Err      error
}

func (e *ProviderClientError) Error() string {
	return fmt.Sprintf("%s client %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderClientError) Unwrap() error {
	return e.Err
}

// NewProviderClientError creates a ProviderClientError
func NewProviderClientError(provider, op string, err error) *ProviderClientError {
	return &ProviderClientError{Provider: provider, Op: op, Err: err}
}

// IsProviderClientError reports whether err is a ProviderClientError (even when wrapped).
func IsProviderClientError(err error) bool {
	var clientErr *ProviderClientError
	return errors.As(err, &clientErr)
}
