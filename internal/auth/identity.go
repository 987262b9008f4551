package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when no user is signed in.
var ErrUnauthenticated = errors.New("no authenticated user")

// Role distinguishes the two kinds of accounts.
type Role string

const (
	RolePatient    Role = "paciente"
	RoleSpecialist Role = "especialista"
)

// Identity is the signed-in user.
type Identity struct {
	UserID string
	Role   Role
}

// Valid reports whether the identity names a user.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// Provider supplies the current identity.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

// Static always returns the same identity.
type Static Identity

// Current satisfies Provider.
func (s Static) Current(_ context.Context) (Identity, error) {
	id := Identity(s)
	if !id.Valid() {
		return Identity{}, ErrUnauthenticated
	}
	if id.Role == "" {
		id.Role = RolePatient
	}
	return id, nil
}
