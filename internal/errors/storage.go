package errors

import (
	"errors"
	"fmt"
)

// StorageUploadError is a failed object storage write
type StorageUploadError struct {
	Key string
	Err error
}

func (e *StorageUploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *StorageUploadError) Unwrap() error {
	return e.Err
}

// NewStorageUploadError creates a StorageUploadError for the given key
func NewStorageUploadError(key string, err error) *StorageUploadError {
	return &StorageUploadError{Key: key, Err: err}
}

// IsStorageUploadError reports whether err is a StorageUploadError (even when wrapped).
func IsStorageUploadError(err error) bool {
	var uploadErr *StorageUploadError
	return errors.As(err, &uploadErr)
}
