package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrUnknownProvider", ErrUnknownProvider, "unknown provider"},
		{"ErrStateNotFound", ErrStateNotFound, "authorization state not found"},
		{"ErrStateExpired", ErrStateExpired, "authorization state expired"},
		{"ErrStateReplay", ErrStateReplay, "authorization state already used"},
		{"ErrStateTampered", ErrStateTampered, "authorization state tampered"},
		{"ErrDecryption", ErrDecryption, "decryption failed"},
		{"ErrRefreshFailed", ErrRefreshFailed, "token refresh failed"},
		{"ErrNeedsReauth", ErrNeedsReauth, "reauthorization required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrConflict,
		ErrUnknownProvider,
		ErrStateNotFound,
		ErrStateExpired,
		ErrStateReplay,
		ErrStateTampered,
		ErrDecryption,
		ErrTokenExchange,
		ErrRefreshFailed,
		ErrNeedsReauth,
		ErrProviderUnavailable,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestTokenExchangeError(t *testing.T) {
	err := &TokenExchangeError{
		Platform:    PlatformSpotify,
		StatusCode:  400,
		Code:        "invalid_grant",
		Description: "Invalid authorization code",
	}

	wrapped := fmt.Errorf("complete authorization: %w", err)
	if !errors.Is(wrapped, ErrTokenExchange) {
		t.Error("expected wrapped error to match ErrTokenExchange")
	}

	var target *TokenExchangeError
	if !errors.As(wrapped, &target) {
		t.Fatal("expected errors.As to find TokenExchangeError")
	}
	if target.Code != "invalid_grant" {
		t.Errorf("expected code invalid_grant, got %s", target.Code)
	}

	want := "token exchange with spotify failed (status 400): invalid_grant: Invalid authorization code"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestNeedsReauthError(t *testing.T) {
	err := &NeedsReauthError{Platform: PlatformGitHub, Reason: "refresh token revoked"}
	if !errors.Is(err, ErrNeedsReauth) {
		t.Error("expected NeedsReauthError to match ErrNeedsReauth")
	}
	if errors.Is(err, ErrRefreshFailed) {
		t.Error("NeedsReauthError should not match ErrRefreshFailed")
	}
	if err.Error() != "github: refresh token revoked, reconnect your account" {
		t.Errorf("unexpected message %q", err.Error())
	}

	bare := &NeedsReauthError{Platform: PlatformGitHub}
	if bare.Error() != "github: reconnect your account" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestIsStateError(t *testing.T) {
	for _, err := range []error{ErrStateNotFound, ErrStateExpired, ErrStateReplay, ErrStateTampered} {
		if !IsStateError(fmt.Errorf("consume: %w", err)) {
			t.Errorf("expected %v to be a state error", err)
		}
	}
	if IsStateError(ErrTokenExchange) {
		t.Error("token exchange error is not a state error")
	}
}
