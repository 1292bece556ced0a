package jwtverifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Verifier.
type Options struct {
	// Secret verifies HS256/HS384/HS512 tokens. Empty disables the symmetric path.
	Secret string
	// Keys resolves keys for ES*/RS*/PS* tokens. Nil disables the asymmetric path.
	Keys KeyCache
	// ClockSkew is the leeway applied to exp, nbf and iat.
	ClockSkew time.Duration
	Clock     Clock
}

// Verifier validates session tokens from both issuing paths.
//
// The audience claim is informational only and is never enforced: provider sessions and
// locally minted fallback sessions share this path.
type Verifier struct {
	secret []byte
	keys   KeyCache
	skew   time.Duration
	clock  Clock
}

func New(opts Options) *Verifier {
	clk := opts.Clock
	if clk == nil {
		clk = realClock{}
	}
	return &Verifier{
		secret: []byte(opts.Secret),
		keys:   opts.Keys,
		skew:   opts.ClockSkew,
		clock:  clk,
	}
}

// keySource is the closed set of verification strategies, selected once from the
// unverified header.
type keySource interface {
	keyFor(ctx context.Context, t *jwt.Token) (any, error)
}

type symmetricKey struct{ secret []byte }

func (s symmetricKey) keyFor(context.Context, *jwt.Token) (any, error) {
	return s.secret, nil
}

type asymmetricKey struct {
	keys   KeyCache
	family string
}

func (a asymmetricKey) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: token has no kid", ErrBadSignature)
	}
	key, err := a.keys.Key(ctx, kid)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: unknown kid %q", ErrBadSignature, kid)
		}
		return nil, err
	}
	switch a.family {
	case "ES":
		if _, ok := key.(*ecdsa.PublicKey); ok {
			return key, nil
		}
	case "RS", "PS":
		if _, ok := key.(*rsa.PublicKey); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: key %q does not match algorithm family %s", ErrBadSignature, kid, a.family)
}

func (v *Verifier) sourceFor(alg string) (keySource, error) {
	switch alg {
	case "HS256", "HS384", "HS512":
		if len(v.secret) == 0 {
			return nil, ErrUnsupportedAlgorithm
		}
		return symmetricKey{secret: v.secret}, nil
	}
	if len(alg) > 2 {
		switch family := alg[:2]; family {
		case "ES", "RS", "PS":
			if v.keys == nil || jwt.GetSigningMethod(alg) == nil {
				return nil, ErrUnsupportedAlgorithm
			}
			return asymmetricKey{keys: v.keys, family: family}, nil
		}
	}
	return nil, ErrUnsupportedAlgorithm
}

// Verify checks raw and returns the identity it carries.
//
// Steps: inspect the unverified header once, reject expired tokens, verify the signature
// with the key source the algorithm selects, then require a UUID subject.
func (v *Verifier) Verify(ctx context.Context, raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, ErrMissingCredential
	}

	var unverified sessiontoken.Claims
	tok, _, err := jwt.NewParser().ParseUnverified(raw, &unverified)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	alg, _ := tok.Header["alg"].(string)
	src, err := v.sourceFor(alg)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %q", err, alg)
	}

	timing := jwt.NewValidator(
		jwt.WithLeeway(v.skew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err := timing.Validate(&unverified); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpired
		}
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	var claims sessiontoken.Claims
	_, err = jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithoutClaimsValidation(),
	).ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return src.keyFor(ctx, t)
	})
	if err != nil {
		return domain.Identity{}, classify(err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing sub", ErrMalformedClaims)
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: sub is not a uuid", ErrMalformedClaims)
	}
	return domain.Identity{UserID: domain.UserID(id.String()), Email: claims.Email}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrBadSignature):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrBadSignature
	default:
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
}
