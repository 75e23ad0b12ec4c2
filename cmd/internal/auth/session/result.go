package session

import (
	"errors"
	"fmt"

	"ssod/cmd/internal/auth/account"
)

// Code is the stable machine-readable outcome of an operation.
type Code string

const (
	CodeOK         Code = "ok"
	CodeValidation Code = "validation"
	CodeCapacity   Code = "capacity"
	CodeNetwork    Code = "network"
	CodeStorage    Code = "storage"
	CodeInternal   Code = "internal"
)

const (
	msgLoginOK        = "Login successful"
	msgRegisterOK     = "Registration successful"
	msgLogoutOK       = "Logged out"
	msgLogoutAllOK    = "All accounts logged out"
	msgSwitchOK       = "Switched account"
	msgTokenOK        = "Token fetched"
	msgAccountInfoOK  = "Account info fetched"
	msgNoMatch        = "no matching account"
	msgNeedCreds      = "mail and password are required"
	msgNeedGUIDToken  = "guid and session token are required"
	msgStorage        = "Storage unavailable"
	msgInternal       = "Internal error"
	msgCapacityFormat = "Maximum of %d accounts reached"
)

// Result is the outcome of one manager operation.
type Result struct {
	Success bool
	Message string
	Code    Code

	// Account is the affected account on success, when there is one.
	Account *account.Account

	// Tokens is set by FetchAccountInfo.
	Tokens []string

	// Err wraps one of the package sentinels on failure.
	Err error
}

func okResult(msg string, a *account.Account) Result {
	return Result{Success: true, Message: msg, Code: CodeOK, Account: a}
}

func failResult(code Code, sentinel error, msg string, cause error) Result {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return Result{Success: false, Message: msg, Code: code, Err: err}
}

func validationFailure(msg string) Result {
	return failResult(CodeValidation, ErrValidation, msg, nil)
}

func capacityFailure(limit int) Result {
	return failResult(CodeCapacity, ErrCapacity, fmt.Sprintf(msgCapacityFormat, limit), nil)
}

func networkFailure(msg string) Result {
	return failResult(CodeNetwork, ErrNetwork, msg, errors.New(msg))
}

func storageFailure(cause error) Result {
	return failResult(CodeStorage, ErrStorage, msgStorage, cause)
}

func internalFailure(cause error) Result {
	return failResult(CodeInternal, ErrInternal, msgInternal, cause)
}

func accountPtr(a account.Account) *account.Account {
	c := a.Clone()
	return &c
}
