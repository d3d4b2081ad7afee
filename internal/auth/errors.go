package auth

import "errors"

// Sentinel errors for credential operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidToken indicates an access token that is not three segments
	// or whose payload is not valid base64 JSON claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRefreshTokenMissing indicates the access token is unusable and no
	// refresh token is stored to redeem.
	ErrRefreshTokenMissing = errors.New("refresh token missing")

	// ErrUnableToObtainToken indicates a refresh token redemption failed.
	// The provider has logged out by the time this is returned. The
	// underlying cause is wrapped alongside it.
	ErrUnableToObtainToken = errors.New("unable to obtain token")
)
