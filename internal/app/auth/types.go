package auth

import (
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
)

// TokenMinter issues locally-signed session tokens.
type TokenMinter interface {
	Mint(user domain.UserID, email string, ttl time.Duration) (sessiontoken.Token, error)
	MintPending(user domain.UserID, email string, ttl time.Duration) (sessiontoken.Token, error)
}

// Source records which tier produced a session.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
	// SourcePending marks a local token issued while email confirmation is outstanding.
	SourcePending Source = "pending"
)

// User is the user summary returned alongside a session.
type User struct {
	ID    domain.UserID
	Email string
	Name  string
}

// Session is the outcome of a successful login, signup or verification.
type Session struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int
	RefreshToken string
	User         User
	Source       Source
}

type LoginInput struct {
	Email    string
	Password string
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// SignupResult carries the session plus whether the account still awaits email confirmation.
type SignupResult struct {
	Session                   Session
	EmailConfirmationRequired bool
}

// VerifyEmailInput confirms an email either by OTP (Email+Token) or by TokenHash.
type VerifyEmailInput struct {
	Type      string
	Email     string
	Token     string
	TokenHash string
}

// UpdateProfileInput is a partial profile update. Nil fields are left untouched.
type UpdateProfileInput struct {
	Name        *string
	DisplayName *string
}

// providerOutcome is the typed result of the provider tier of a login.
type providerOutcome int

const (
	providerSucceeded providerOutcome = iota
	// providerRejected is a real credential rejection (4xx). It is terminal.
	providerRejected
	// providerUnavailable covers 5xx, transport failures and timeouts.
	providerUnavailable
)

func (o providerOutcome) String() string {
	switch o {
	case providerSucceeded:
		return "succeeded"
	case providerRejected:
		return "rejected"
	case providerUnavailable:
		return "unavailable"
	}
	return "unknown"
}
