package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError. The transport layer maps each kind to a status.
type Kind string

const (
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindInvalidInput            Kind = "invalid_input"
	KindMalformedRequest        Kind = "malformed_request"
	KindUnsupportedCurrencyPair Kind = "unsupported_currency_pair"
	KindUnauthorized            Kind = "unauthorized"
	KindOperationNotAllowed     Kind = "operation_not_allowed"
	KindRateLimited             Kind = "rate_limited"
	KindStorageFailure          Kind = "storage_failure"
)

// AppError is a structured error carried from the core to the HTTP adapter.
type AppError struct {
	Kind    Kind              `json:"-"`
	Code    string            `json:"error_code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"errors,omitempty"` // per-field validation messages
	Err     error             `json:"-"`                // wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindStorageFailure for anything else.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorageFailure
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Users (USR) ----

func ErrUserNotFound() *AppError {
	return New(KindNotFound, "USR_001", "User not found")
}

func ErrEmailExists() *AppError {
	return New(KindConflict, "USR_002", "A user with this email already exists")
}

// ---- Wallets (WAL) ----

func ErrWalletNotFound() *AppError {
	return New(KindNotFound, "WAL_001", "Wallet not found")
}

func ErrWalletExists() *AppError {
	return New(KindConflict, "WAL_002", "User already has a wallet")
}

// ErrOperationNotAllowed is deliberately uniform: inactive owner and
// insufficient balance look the same to the caller.
func ErrOperationNotAllowed() *AppError {
	return New(KindOperationNotAllowed, "WAL_003", "Operation not allowed")
}

// ---- Idempotency (IDEM) ----

// ErrIdempotencyInProgress is returned while another request holding the same
// idempotency key has not finished. Retrying later replays its result.
func ErrIdempotencyInProgress() *AppError {
	return New(KindConflict, "IDEM_001", "A request with this idempotency key is still in progress")
}

// ---- Validation (VAL) ----

func ErrInvalidInput(fields map[string]string) *AppError {
	return &AppError{Kind: KindInvalidInput, Code: "VAL_001", Message: "Invalid input", Fields: fields}
}

func ErrMalformedRequest(err error) *AppError {
	return Wrap(KindMalformedRequest, "VAL_002", "Malformed request body", err)
}

func ErrInvalidAmount() *AppError {
	return New(KindInvalidInput, "VAL_003", "Invalid amount")
}

// Validation returns a VAL_001 error with a custom message.
func Validation(message string) *AppError {
	return New(KindInvalidInput, "VAL_001", message)
}

// ---- Currency (FX) ----

func ErrUnsupportedCurrencyPair(from, to string) *AppError {
	return New(KindUnsupportedCurrencyPair, "FX_001",
		fmt.Sprintf("Unsupported currency conversion %s -> %s", from, to))
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(KindUnauthorized, "AUTH_001", "Invalid credentials")
}

func ErrInvalidToken() *AppError {
	return New(KindUnauthorized, "AUTH_002", "Invalid or expired token")
}

func ErrInactiveUser() *AppError {
	return New(KindUnauthorized, "AUTH_003", "User is not active")
}

func ErrForeignWallet() *AppError {
	return New(KindUnauthorized, "AUTH_004", "Token does not grant access to this wallet")
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded")
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps a storage or infrastructure error as SYS_001.
func InternalError(err error) *AppError {
	return Wrap(KindStorageFailure, "SYS_001", "Internal server error", err)
}
