package jwtverifier

import "errors"

// Verification failures. Generic failures wrap ErrInvalid together with their cause.
var (
	ErrMissingCredential    = errors.New("missing credential")
	ErrExpired              = errors.New("token expired")
	ErrBadSignature         = errors.New("bad token signature")
	ErrMalformedClaims      = errors.New("malformed token claims")
	ErrUnsupportedAlgorithm = errors.New("unsupported token algorithm")
	ErrInvalid              = errors.New("invalid token")
)

// ErrKeyNotFound is returned by a KeyCache when the key set does not publish the key id.
var ErrKeyNotFound = errors.New("verification key not found")
