package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Machine-readable error codes surfaced in the error envelope.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeEmailExists         = "EMAIL_ALREADY_EXISTS"
	CodePhoneExists         = "PHONE_ALREADY_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeKYCRequired         = "KYC_REQUIRED"
	CodeTicketNotAvailable  = "TICKET_NOT_AVAILABLE"
	CodeWithdrawalMinAmount = "WITHDRAWAL_MIN_AMOUNT"
	CodeInternalError       = "INTERNAL_ERROR"
)

// APIError is an operational error carried from the business layer to
// the HTTP edge with its code and status attached.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError builds an operational error with a caller-chosen message.
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, Status: status}
}

// Domain errors. Business-rule violations are always one of these,
// never a bare 500.
var (
	ErrEmailExists         = &APIError{CodeEmailExists, "Email already in use", http.StatusConflict}
	ErrPhoneExists         = &APIError{CodePhoneExists, "Phone number already in use", http.StatusConflict}
	ErrInvalidCredentials  = &APIError{CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized}
	ErrUnauthorized        = &APIError{CodeUnauthorized, "Authentication required", http.StatusUnauthorized}
	ErrForbidden           = &APIError{CodeForbidden, "Access denied", http.StatusForbidden}
	ErrNotFound            = &APIError{CodeNotFound, "Resource not found", http.StatusNotFound}
	ErrInvalidToken        = &APIError{CodeInvalidToken, "Invalid or expired token", http.StatusBadRequest}
	ErrInsufficientBalance = &APIError{CodeInsufficientBalance, "Insufficient available balance", http.StatusBadRequest}
	ErrKYCRequired         = &APIError{CodeKYCRequired, "Identity verification required", http.StatusForbidden}
	ErrTicketNotAvailable  = &APIError{CodeTicketNotAvailable, "Ticket is not available for sale", http.StatusConflict}
	ErrWithdrawalMinAmount = &APIError{CodeWithdrawalMinAmount, "Amount below the minimum withdrawal", http.StatusBadRequest}
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

// SendSuccess writes the success envelope.
func SendSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// SendError writes the error envelope. Operational errors keep their
// code and status; anything else is logged in full and returned as a
// generic internal error.
func SendError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		log.Printf("[ERROR] Unexpected error: %v", err)
		apiErr = &APIError{CodeInternalError, "An internal error occurred", http.StatusInternalServerError}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: apiErr.Code, Message: apiErr.Message},
	})
}

// SendValidationError writes a VALIDATION_ERROR envelope with per-field
// details when the error came from the validator.
func SendValidationError(w http.ResponseWriter, message string, validationErr error) {
	body := &errorBody{Code: CodeValidationError, Message: message}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		body.Details = make(map[string]string)
		for _, fe := range fieldErrs {
			body.Details[fe.Field()] = fmt.Sprintf("Field validation failed on '%s' tag", fe.Tag())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: body})
}
