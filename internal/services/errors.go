package services

import (
	"errors"

	"github.com/isdelr/ender-accounts/internal/credential"
	"github.com/isdelr/ender-accounts/internal/policy"
)

var (
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrAuthFailure     = errors.New("authentication failed")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCorruptCredential is an integrity fault, never a user error.
	ErrCorruptCredential = credential.ErrCorruptCredential
)

// AuthReason is the internal cause of an authentication failure.
type AuthReason string

const (
	ReasonUnknownLogin    AuthReason = "unknownLogin"
	ReasonBadCredential   AuthReason = "badCredential"
	ReasonStaleCredential AuthReason = "staleCredential"
)

// AuthError keeps the internal reason; its message is the same for every
// reason so callers cannot tell an unknown login from a wrong secret.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string { return ErrAuthFailure.Error() }

func (e *AuthError) Is(target error) bool { return target == ErrAuthFailure }

// ForbiddenError carries the policy denial.
type ForbiddenError struct {
	Operation policy.Operation
	Reason    policy.Reason
}

func (e *ForbiddenError) Error() string {
	return ErrForbidden.Error() + ": " + string(e.Reason)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// ConflictReason names the violated uniqueness rule.
type ConflictReason string

const ReasonDuplicateLogin ConflictReason = "duplicateLogin"

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	return ErrConflict.Error() + ": " + string(e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
