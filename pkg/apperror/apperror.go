package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrPermission   = errors.New("permission denied")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal server error")
	ErrUnauthorized = errors.New("unauthorized")

	// Ingestion kinds.
	ErrMissingRequiredFiles = errors.New("missing required files")
	ErrInvalidArchive       = errors.New("invalid archive")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrEntityWrite          = errors.New("entity write failure")
	ErrConflictRace         = errors.New("conflict race")
)

// Machine-readable kinds reported to callers.
const (
	KindMissingRequiredFiles = "MissingRequiredFiles"
	KindInvalidArchive       = "InvalidArchive"
	KindMissingRequiredField = "MissingRequiredField"
	KindEntityWrite          = "EntityWriteFailure"
	KindConflictRace         = "ConflictRace"
	KindNotFound             = "NotFound"
	KindPermission           = "PermissionDenied"
	KindInvalidInput         = "InvalidInput"
	KindConflict             = "Conflict"
	KindUnauthorized         = "Unauthorized"
	KindInternal             = "Internal"
)

var kinds = []struct {
	base error
	kind string
}{
	{ErrMissingRequiredFiles, KindMissingRequiredFiles},
	{ErrInvalidArchive, KindInvalidArchive},
	{ErrMissingRequiredField, KindMissingRequiredField},
	{ErrEntityWrite, KindEntityWrite},
	{ErrConflictRace, KindConflictRace},
	{ErrNotFound, KindNotFound},
	{ErrPermission, KindPermission},
	{ErrInvalidInput, KindInvalidInput},
	{ErrConflict, KindConflict},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInternal, KindInternal},
}

type AppError struct {
	BaseError error
	Message   string
	Details   string
	Err       error
	Meta      map[string]any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (Details: %s, Cause: %v)", e.BaseError.Error(), e.Message, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s (Details: %s)", e.BaseError.Error(), e.Message, e.Details)
}

func (e *AppError) Unwrap() error {
	return e.BaseError
}

func NewAppError(base error, msg, details string, err error) *AppError {
	return &AppError{BaseError: base, Message: msg, Details: details, Err: err}
}

func NewNotFound(resource, identifier string) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	details := fmt.Sprintf("%s with identifier '%s' was not found", resource, identifier)
	return NewAppError(ErrNotFound, msg, details, nil)
}

func NewInvalidInput(details string, err error) *AppError {
	return NewAppError(ErrInvalidInput, "Invalid input provided", details, err)
}

func NewConflict(resource, field, value string) *AppError {
	msg := fmt.Sprintf("%s conflict", resource)
	details := fmt.Sprintf("%s with %s '%s' already exists", resource, field, value)
	return NewAppError(ErrConflict, msg, details, nil)
}

func NewInternal(details string, err error) *AppError {
	return NewAppError(ErrInternal, "An internal server error occurred", details, err)
}

func NewUnauthorized(details string, err error) *AppError {
	return NewAppError(ErrUnauthorized, "Invalid credentials", details, err)
}

func NewPermissionDenied(details string) *AppError {
	return NewAppError(ErrPermission, "Permission denied", details, nil)
}

// NewMissingRequiredFiles lists the export files the caller still has to supply.
func NewMissingRequiredFiles(missing []string) *AppError {
	e := NewAppError(
		ErrMissingRequiredFiles,
		fmt.Sprintf("Your upload is missing required files: %s", strings.Join(missing, ", ")),
		"Profile.csv and Connections.csv must both be present",
		nil,
	)
	e.Meta = map[string]any{"missing": missing}
	return e
}

func NewInvalidArchive(details string, err error) *AppError {
	return NewAppError(ErrInvalidArchive, "The uploaded archive could not be opened. Please upload the original LinkedIn export .zip", details, err)
}

func NewMissingRequiredField(file, field string) *AppError {
	e := NewAppError(
		ErrMissingRequiredField,
		fmt.Sprintf("%s is missing the required column value %q", file, field),
		fmt.Sprintf("first data row of %s has no %s", file, field),
		nil,
	)
	e.Meta = map[string]any{"file": file, "field": field}
	return e
}

func NewEntityWrite(entity, details string, err error) *AppError {
	return NewAppError(ErrEntityWrite, fmt.Sprintf("failed to write %s", entity), details, err)
}

// Kind returns the machine-readable kind of err, or "" when err is nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.base) {
			return k.kind
		}
	}
	return KindInternal
}

// UserMessage returns the plain-language message carried by err.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal server error occurred"
}

func ToHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrMissingRequiredFiles) || errors.Is(err, ErrInvalidArchive) || errors.Is(err, ErrMissingRequiredField) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrPermission) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (e *AppError) ToJSON() gin.H {
	body := gin.H{
		"error":   Kind(e),
		"message": e.Message,
	}
	for k, v := range e.Meta {
		body[k] = v
	}
	return body
}
