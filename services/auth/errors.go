package auth

import "errors"

var (
	// ErrAuthMissing means the Authorization header is absent or not "Bearer <token>".
	ErrAuthMissing = errors.New("missing or invalid authorization token")
	// ErrAuthInvalid means the token is unknown or its owner is inactive.
	ErrAuthInvalid = errors.New("invalid or expired token")
	// ErrAuthForbidden means the principal lacks the role the route requires.
	ErrAuthForbidden = errors.New("insufficient permissions")

	// ErrTokenNotFound is returned by token lookups that match nothing.
	ErrTokenNotFound = errors.New("token not found")
)
