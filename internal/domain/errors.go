package domain

import "errors"

var (
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("google: invalid request")
	// ErrNotConnected signals that no credential is stored for the user.
	ErrNotConnected = errors.New("google: account not connected")
	// ErrReauthRequired signals an unrefreshable grant; the user must go
	// through the consent flow again.
	ErrReauthRequired = errors.New("google: reauthorization required")
	// ErrNotFound signals a missing credential record on a targeted update.
	ErrNotFound = errors.New("google: credential not found")
	// ErrInvalidState indicates the OAuth state failed verification or was
	// already consumed.
	ErrInvalidState = errors.New("google: invalid state")
)
