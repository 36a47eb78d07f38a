package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Two-factor errors
	ErrTwoFactorNotEnabled   = errors.New("two-factor authentication is not enabled")
	ErrTwoFactorAlreadySetup = errors.New("two-factor authentication is already enabled")
	ErrInvalidCode           = errors.New("invalid verification code")
)
