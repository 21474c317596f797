package errors

import (
	stderrors "errors"
	"fmt"

	"goregime/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr == err {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the outermost AppError code, falling back to the domain
// classification of err.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return classify(err)
}

func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, core.ErrFamilyInconsistent):
		return CodeFamilyInconsistent
	case stderrors.Is(err, core.ErrStructural):
		return CodeStructural
	case stderrors.Is(err, core.ErrDomain):
		return CodeDomain
	}
	return CodeInternalError
}

// Predefined error codes
const (
	CodeStructural         = "STRUCTURAL"
	CodeDomain             = "DOMAIN"
	CodeFamilyInconsistent = "FAMILY_INCONSISTENT"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeStoreError         = "STORE_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func StoreError(message string, cause error) *AppError {
	return &AppError{Code: CodeStoreError, Message: message, Cause: cause}
}

// Fatal wraps a run-aborting error, coding it from its domain sentinel.
func Fatal(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: GetCode(err), Message: stage, Cause: err}
}

// ExitCode maps an error to a process exit status for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case CodeStructural, CodeFamilyInconsistent:
		return 2
	case CodeConfigInvalid:
		return 3
	case CodeStoreError:
		return 4
	}
	return 1
}
