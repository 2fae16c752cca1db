package task

import (
	"errors"
	"fmt"

	"TaskAgent/backend/go/internal/models"
)

// Error is a parse or validation failure. It is always returned as a value,
// and errors.Is matches on Code alone.
type Error struct {
	Code   models.ErrorCode
	Kind   Kind
	Field  string
	Reason string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Kind != "":
		return fmt.Sprintf("%s(%s, %s): %s", e.Code, e.Kind, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s(%s): %s", e.Code, e.Field, e.Reason)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	default:
		return string(e.Code)
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMissingField   = &Error{Code: models.ErrMissingField}
	ErrInvalidField   = &Error{Code: models.ErrInvalidField}
	ErrUnknownKind    = &Error{Code: models.ErrUnknownKind}
	ErrSourceMismatch = &Error{Code: models.ErrSourceMismatch}
	ErrRateLimited    = &Error{Code: models.ErrRateLimited}
)

func missingField(field string) error {
	return &Error{Code: models.ErrMissingField, Field: field, Reason: "required"}
}

func invalidField(kind Kind, field, reason string) error {
	return &Error{Code: models.ErrInvalidField, Kind: kind, Field: field, Reason: reason}
}

// CodeOf extracts the taxonomy code from err, or Internal for foreign errors.
func CodeOf(err error) models.ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return models.ErrInternal
}

// FailedResult converts a parse error into the result reported for the descriptor.
func FailedResult(taskID string, err error) models.TaskResult {
	var te *Error
	if errors.As(err, &te) {
		r := models.Failed(taskID, string(te.Kind), te.Code, te.Field, te.Error())
		return r
	}
	return models.Failed(taskID, "", models.ErrInternal, "", err.Error())
}
