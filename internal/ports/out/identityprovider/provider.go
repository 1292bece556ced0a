package identityprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/devlogs/devlogs-api/internal/domain"
)

// User is the provider's user record as far as this service reads it.
type User struct {
	ID               domain.UserID
	Email            string
	Metadata         map[string]any
	EmailConfirmed   bool
	ConfirmationSent bool
}

// MetadataName returns user_metadata.name, then user_metadata.full_name, or "".
func (u User) MetadataName() string {
	for _, k := range []string{"name", "full_name"} {
		if s, ok := u.Metadata[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Session is a provider-issued session.
type Session struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int
	RefreshToken string
	User         User
}

// SignUpResult is what signup returns: a session when the account is auto-confirmed,
// otherwise only the user pending email confirmation.
//
// AlreadyRegistered is set when the provider answers 2xx with an obfuscated user for an
// email that already has an account. User is then not a real account.
type SignUpResult struct {
	Session           *Session
	User              User
	AlreadyRegistered bool
}

// VerifyInput is an email verification (OTP or token hash) request.
type VerifyInput struct {
	Type      string
	Email     string
	Token     string
	TokenHash string
}

// UserUpdate is an admin update of a provider user. Nil fields are left untouched.
type UserUpdate struct {
	Password     *string
	EmailConfirm *bool
	Metadata     map[string]any
}

// Provider is the remote identity provider.
//
// Errors: a response the provider produced with a non-2xx status is returned as *Error.
// Anything else (DNS, TLS, timeout, undecodable body) is a transport failure, except that
// PasswordGrant reports a 2xx answer without a usable session as a 401 *Error.
type Provider interface {
	PasswordGrant(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (SignUpResult, error)
	Verify(ctx context.Context, in VerifyInput) (Session, error)
	ResendVerification(ctx context.Context, email string) error
	AdminUpdateUser(ctx context.Context, id domain.UserID, u UserUpdate) (User, error)
}

// Error is a non-2xx response from the provider.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("identity provider: status=%d code=%q: %s", e.Status, e.Code, e.Message)
}

// ClientError reports whether the provider rejected the request itself (4xx).
func (e *Error) ClientError() bool {
	return e != nil && e.Status >= 400 && e.Status < 500
}

// AlreadyRegistered reports whether the provider says the email already has an account.
// Providers word this differently across versions, so both code and message are checked.
func (e *Error) AlreadyRegistered() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case "user_already_exists", "email_exists":
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already registered") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "already been registered")
}

// NotFound reports a 404 from the provider.
func (e *Error) NotFound() bool {
	return e != nil && e.Status == http.StatusNotFound
}

// AsError unwraps err to a provider *Error.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
