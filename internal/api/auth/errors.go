package auth

import (
	"errors"
	"fmt"
)

// Input errors. Nothing has been written when these are returned.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidInput = fmt.Errorf("%w: invalid password", ErrValidation)
)

// ErrDuplicateUser is returned by Create when the username is already taken.
var ErrDuplicateUser = errors.New("username already exists")

// Authentication failures. ErrUserNotFound and ErrInvalidCredentials both wrap
// ErrUnauthenticated so transports can report them identically.
var (
	ErrUnauthenticated    = errors.New("invalid username or password")
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: password mismatch", ErrUnauthenticated)
)

// Gate failures.
var (
	ErrMissingToken = errors.New("token is missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Internal faults. Retrying with the same input reproduces them.
var (
	ErrCorruptHash = errors.New("corrupt password hash")
	ErrSigning     = errors.New("token signing failed")
)
