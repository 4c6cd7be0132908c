package token

import "errors"

var (
	// ErrInvalidToken is returned when a token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a structurally valid token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrWrongTokenClass is returned when a token of one class is presented to the
	// other class's verifier (refresh token on the access path and vice versa).
	ErrWrongTokenClass = errors.New("wrong token class")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
