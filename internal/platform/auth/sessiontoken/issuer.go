package sessiontoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devlogs/devlogs-api/internal/domain"
	clockport "github.com/devlogs/devlogs-api/internal/ports/out/clock"
)

// Issuer mints HS256 session tokens signed with the shared secret, so that the token
// verifier accepts them exactly like provider-issued tokens.
type Issuer struct {
	secret   []byte
	audience string
	clk      clockport.Clock
}

func NewIssuer(secret, audience string, clk clockport.Clock) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("sessiontoken: empty signing secret")
	}
	if audience == "" {
		audience = AudienceAuthenticated
	}
	return &Issuer{secret: []byte(secret), audience: audience, clk: clk}, nil
}

// Token is a minted session token.
type Token struct {
	Raw       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the token lifetime in whole seconds.
func (t Token) TTL() int {
	return int(t.ExpiresAt.Sub(t.IssuedAt) / time.Second)
}

// Mint issues a session for user valid for ttl.
func (i *Issuer) Mint(user domain.UserID, email string, ttl time.Duration) (Token, error) {
	return i.mint(user, email, ttl, nil)
}

// MintPending issues a short-lived session for an account whose email is not yet confirmed.
func (i *Issuer) MintPending(user domain.UserID, email string, ttl time.Duration) (Token, error) {
	verified := false
	return i.mint(user, email, ttl, &verified)
}

func (i *Issuer) mint(user domain.UserID, email string, ttl time.Duration, emailVerified *bool) (Token, error) {
	if user == "" {
		return Token{}, errors.New("sessiontoken: empty subject")
	}
	if ttl <= 0 {
		return Token{}, errors.New("sessiontoken: ttl must be positive")
	}
	now := i.clk.Now().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		Email:         email,
		Role:          RoleAuthenticated,
		EmailVerified: emailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Raw: raw, IssuedAt: now, ExpiresAt: exp}, nil
}
