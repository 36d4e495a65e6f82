// Package auth turns bearer tokens into principals for the handlers.
package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissing means no credential was presented.
	ErrMissing = errors.New("missing credential")
	// ErrMalformed means the credential could not be verified.
	ErrMalformed = errors.New("malformed credential")
	// ErrExpired means the credential was valid but is past its expiry.
	ErrExpired = errors.New("expired credential")
)

// Principal is the caller of a handler: a guest or an authenticated user.
type Principal struct {
	id            int64
	authenticated bool
}

// Guest returns the unauthenticated principal.
func Guest() Principal {
	return Principal{}
}

// User returns the principal of an authenticated user id.
func User(id int64) Principal {
	return Principal{id: id, authenticated: true}
}

// ID returns the user id, or false for a guest.
func (p Principal) ID() (int64, bool) {
	return p.id, p.authenticated
}

// IsGuest reports whether p is unauthenticated.
func (p Principal) IsGuest() bool {
	return !p.authenticated
}

func (p Principal) String() string {
	if !p.authenticated {
		return "guest"
	}
	return fmt.Sprintf("user:%d", p.id)
}

// Authenticator verifies the value of an Authorization header.
type Authenticator interface {
	Authenticate(header string) (Principal, error)
}
