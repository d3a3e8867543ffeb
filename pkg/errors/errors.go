package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies a domain error category.
type Code string

const (
	CodeSlotUnavailable   Code = "SLOT_UNAVAILABLE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeDoctorBusy        Code = "DOCTOR_BUSY"
	CodeNotFound          Code = "NOT_FOUND"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeStorage           Code = "STORAGE_ERROR"
)

// AppError is a typed domain error carrying the HTTP status the API
// layer should respond with.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// StatusCode satisfies the error middleware's status probe.
func (e *AppError) StatusCode() int { return e.Status }

// SlotUnavailable signals a lost booking race or an occupied/blocked slot.
func SlotUnavailable(message string) *AppError {
	return &AppError{Code: CodeSlotUnavailable, Message: message, Status: http.StatusConflict}
}

// InvalidTransition signals an operation that is not legal for the
// entity's current state.
func InvalidTransition(message string) *AppError {
	return &AppError{Code: CodeInvalidTransition, Message: message, Status: http.StatusConflict}
}

// DoctorBusy signals a call-next while a consultation is in progress.
func DoctorBusy(message string) *AppError {
	return &AppError{Code: CodeDoctorBusy, Message: message, Status: http.StatusConflict}
}

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound}
}

func Validation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

// Storage wraps a persistence failure, kept distinct from domain errors.
func Storage(err error) *AppError {
	return &AppError{Code: CodeStorage, Message: "storage error", Status: http.StatusInternalServerError, Err: err}
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
