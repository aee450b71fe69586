package app

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-thinpool/internal/damage"
)

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	switch {
	case e.Cause == nil:
		return e.Message
	case e.Message == "":
		return e.Cause.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeMetadataAccess = "METADATA_ACCESS"
	ErrCodeMetadataDamage = "METADATA_DAMAGE"
	ErrCodeInternal       = "INTERNAL"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AnalysisError classifies an error from reading or analyzing metadata.
// Damage keeps its own message, which already directs the operator to
// thin_check.
func AnalysisError(message string, err error) *CommonError {
	var common *CommonError
	if errors.As(err, &common) {
		return common
	}

	switch {
	case errors.Is(err, damage.ErrMetadataDamage):
		return NewError(ErrCodeMetadataDamage, "", err)
	case errors.Is(err, damage.ErrInvariant):
		return NewError(ErrCodeInternal, "internal error", err)
	default:
		return NewError(ErrCodeMetadataAccess, message, err)
	}
}

// ErrorCode returns the code of a CommonError in err's chain, or
// ErrCodeInternal when there is none
func ErrorCode(err error) string {
	var common *CommonError
	if errors.As(err, &common) {
		return common.Code
	}
	return ErrCodeInternal
}
