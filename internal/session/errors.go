package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed matches every *AuthError.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrChallengeRequired means the site shows a CAPTCHA and a human answer is
	// needed before logging in.
	ErrChallengeRequired = errors.New("captcha challenge required")

	// ErrNoCredentials means the site needs a login but none is configured.
	ErrNoCredentials = errors.New("no credentials configured")
)

// AuthError carries the site's own error message from a rejected login.
type AuthError struct {
	Site    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: login rejected", e.Site)
	}
	return fmt.Sprintf("%s: login rejected: %s", e.Site, e.Message)
}

// Is reports AuthError as ErrAuthenticationFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}
