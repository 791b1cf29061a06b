package services

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// AssetError reports an upload that failed the image checks.
type AssetError struct {
	Reason string
}

func (e *AssetError) Error() string {
	return e.Reason
}

// BackendError wraps a storage failure with the operation that hit it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
