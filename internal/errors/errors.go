package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Category sentinels. Domain errors are marked with exactly one of these so a
// request layer can map them without knowing the domain.
var (
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrConflict         = new(ErrCodeConflict, "conflict")
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")

	statusCodeMap = map[error]int{
		ErrValidation:       http.StatusBadRequest,
		ErrConflict:         http.StatusConflict,
		ErrNotFound:         http.StatusNotFound,
		ErrInvalidOperation: http.StatusUnprocessableEntity,
		ErrPermissionDenied: http.StatusForbidden,
		ErrDatabase:         http.StatusInternalServerError,
		ErrSystem:           http.StatusInternalServerError,
	}
)

const (
	ErrCodeValidation       = "validation_error"
	ErrCodeConflict         = "conflict"
	ErrCodeNotFound         = "not_found"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeDatabase         = "database_error"
	ErrCodeSystemError      = "system_error"
)

// InternalError is a category marker.
type InternalError struct {
	Code    string
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches on code so copies of a category compare equal.
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

// Sentinel declares a domain error pre-marked with a category.
func Sentinel(code string, category error) error {
	return errors.Mark(errors.New(code), category)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsSystem(err error) bool {
	return errors.Is(err, ErrSystem)
}

// Category returns the category code of err, or ErrCodeSystemError when the
// error carries none.
func Category(err error) string {
	for _, category := range []*InternalError{
		ErrValidation,
		ErrConflict,
		ErrNotFound,
		ErrInvalidOperation,
		ErrPermissionDenied,
		ErrDatabase,
		ErrSystem,
	} {
		if errors.Is(err, category) {
			return category.Code
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Hints returns the user-facing hints attached to err.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}
