package sessiontoken

import "github.com/golang-jwt/jwt/v5"

const (
	// AudienceAuthenticated is the audience marker the identity provider stamps on user sessions.
	AudienceAuthenticated = "authenticated"
	// RoleAuthenticated is the role marker for a signed-in user.
	RoleAuthenticated = "authenticated"
)

// Claims is the session token claim shape shared by provider-issued and locally-issued tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	// EmailVerified is only set on tokens minted while an email confirmation is pending.
	EmailVerified *bool `json:"email_verified,omitempty"`

	jwt.RegisteredClaims
}
