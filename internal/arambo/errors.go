package arambo

import "errors"

var (
	// ErrInvalidCredentials - login rejected (wrong username or password)
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited - login rejected with HTTP 429, too many attempts
	ErrRateLimited = errors.New("too many login attempts")
	// ErrUnauthorized - an authenticated call got HTTP 401; the session
	// teardown hook has already been invoked by the time this is returned
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound - resource does not exist
	ErrNotFound = errors.New("not found")
)
