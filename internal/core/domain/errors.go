package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a concurrent writer changed the record first
	ErrConflict = errors.New("conflict")

	// ErrUnknownProvider indicates the platform key is not in the registry
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrStateNotFound indicates no authorization state exists for the given ID
	ErrStateNotFound = errors.New("authorization state not found")

	// ErrStateExpired indicates the authorization state is past its expiry
	ErrStateExpired = errors.New("authorization state expired")

	// ErrStateReplay indicates the authorization state was already consumed
	ErrStateReplay = errors.New("authorization state already used")

	// ErrStateTampered indicates the state token failed verification or
	// does not match the stored record
	ErrStateTampered = errors.New("authorization state tampered")

	// ErrDecryption indicates ciphertext could not be authenticated or decrypted
	ErrDecryption = errors.New("decryption failed")

	// ErrTokenExchange indicates the provider rejected a code or refresh exchange
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrRefreshFailed indicates a token refresh could not be completed
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNeedsReauth indicates the user must re-run the authorization flow
	ErrNeedsReauth = errors.New("reauthorization required")

	// ErrProviderUnavailable indicates the provider could not be reached
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// TokenExchangeError carries the provider's description of a failed
// code-for-token or refresh exchange.
type TokenExchangeError struct {
	Platform    Platform
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("token exchange with %s failed", e.Platform)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Is reports whether target is ErrTokenExchange.
func (e *TokenExchangeError) Is(target error) bool {
	return target == ErrTokenExchange
}

// NeedsReauthError tells the caller that the connection cannot produce a
// usable token until the user authorizes again.
type NeedsReauthError struct {
	Platform Platform
	Reason   string
}

func (e *NeedsReauthError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: reconnect your account", e.Platform)
	}
	return fmt.Sprintf("%s: %s, reconnect your account", e.Platform, e.Reason)
}

// Is reports whether target is ErrNeedsReauth.
func (e *NeedsReauthError) Is(target error) bool {
	return target == ErrNeedsReauth
}

// IsStateError reports whether err belongs to the authorization state family.
func IsStateError(err error) bool {
	return errors.Is(err, ErrStateNotFound) ||
		errors.Is(err, ErrStateExpired) ||
		errors.Is(err, ErrStateReplay) ||
		errors.Is(err, ErrStateTampered)
}
