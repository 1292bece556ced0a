package jwtverifier_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/auth/jwks_testutil"
	"github.com/devlogs/devlogs-api/internal/platform/auth/jwtverifier"
	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
	platformclock "github.com/devlogs/devlogs-api/internal/platform/clock"
)

const (
	testSecret = "super-secret-jwt-token-with-at-least-32-characters"
	testSub    = "6f1c3c55-8a5f-4d6b-9a39-0d0d3b8f4c11"
)

type fixture struct {
	clk  *platformclock.ManualClock
	jwks *jwks_testutil.JWKSServer
	rsa  jwks_testutil.Keypair
	ec   jwks_testutil.Keypair
	v    *jwtverifier.Verifier
	keys *jwtverifier.JWKSCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rsaKP, err := jwks_testutil.GenerateRSAKeypair("kid-rsa")
	require.NoError(t, err)
	ecKP, err := jwks_testutil.GenerateECKeypair("kid-ec")
	require.NoError(t, err)

	srv := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(srv.Close)
	srv.SetKeys([]jwks_testutil.Keypair{rsaKP, ecKP})

	clk := platformclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	cache := jwtverifier.NewJWKSCache(srv.URL, &http.Client{Timeout: 2 * time.Second},
		jwtverifier.WithCacheClock(clk))
	v := jwtverifier.New(jwtverifier.Options{
		Secret:    testSecret,
		Keys:      cache,
		ClockSkew: 30 * time.Second,
		Clock:     clk,
	})
	return &fixture{clk: clk, jwks: srv, rsa: rsaKP, ec: ecKP, v: v, keys: cache}
}

func TestVerifier_ValidTokens_AllAlgorithms(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "a@x.com", f.clk.Now(), 5*time.Minute)

	tokens := map[string]string{}
	for _, m := range []jwt.SigningMethod{jwt.SigningMethodHS256, jwt.SigningMethodHS384, jwt.SigningMethodHS512} {
		raw, err := jwks_testutil.MintSymmetric(m, testSecret, claims)
		require.NoError(t, err)
		tokens[m.Alg()] = raw
	}
	for _, kp := range []jwks_testutil.Keypair{f.rsa, f.ec} {
		raw, err := jwks_testutil.MintAsymmetric(kp, claims)
		require.NoError(t, err)
		tokens[kp.Method().Alg()] = raw
	}

	for alg, raw := range tokens {
		id, err := f.v.Verify(context.Background(), raw)
		require.NoError(t, err, alg)
		assert.Equal(t, domain.UserID(testSub), id.UserID, alg)
		assert.Equal(t, "a@x.com", id.Email, alg)
	}
}

func TestVerifier_MissingCredential(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.v.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, jwtverifier.ErrMissingCredential)
}

func TestVerifier_Expired_RegardlessOfSignature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now().Add(-2*time.Hour), time.Hour)

	good, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, testSecret, claims)
	require.NoError(t, err)
	forged, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, "some-other-secret", claims)
	require.NoError(t, err)
	asym, err := jwks_testutil.MintAsymmetric(f.ec, claims)
	require.NoError(t, err)

	for _, raw := range []string{good, forged, asym} {
		_, err := f.v.Verify(context.Background(), raw)
		assert.ErrorIs(t, err, jwtverifier.ErrExpired)
	}
}

func TestVerifier_ClockSkewTolerance(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	// Expired 10s ago: inside the 30s leeway.
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now().Add(-time.Minute), 50*time.Second)
	raw, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, testSecret, claims)
	require.NoError(t, err)

	_, err = f.v.Verify(context.Background(), raw)
	require.NoError(t, err)

	f.clk.Advance(25 * time.Second)
	_, err = f.v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, jwtverifier.ErrExpired)
}

func TestVerifier_BadSignature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)

	wrongSecret, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, "not-the-configured-secret", claims)
	require.NoError(t, err)

	// Same kid as a published key, different private key.
	other, err := jwks_testutil.GenerateRSAKeypair(f.rsa.Kid)
	require.NoError(t, err)
	wrongKey, err := jwks_testutil.MintAsymmetric(other, claims)
	require.NoError(t, err)

	// Kid that is not published at all.
	unknown, err := jwks_testutil.GenerateECKeypair("kid-unknown")
	require.NoError(t, err)
	unknownKid, err := jwks_testutil.MintAsymmetric(unknown, claims)
	require.NoError(t, err)

	for name, raw := range map[string]string{"secret": wrongSecret, "key": wrongKey, "kid": unknownKid} {
		_, err := f.v.Verify(context.Background(), raw)
		assert.ErrorIs(t, err, jwtverifier.ErrBadSignature, name)
	}
}

func TestVerifier_KeyTypeMustMatchAlgorithm(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)

	// An ES256 token whose kid points at the published RSA key.
	impostor, err := jwks_testutil.GenerateECKeypair(f.rsa.Kid)
	require.NoError(t, err)
	raw, err := jwks_testutil.MintAsymmetric(impostor, claims)
	require.NoError(t, err)

	_, err = f.v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, jwtverifier.ErrBadSignature)
}

func TestVerifier_MalformedClaims(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	noSub := jwks_testutil.Claims("", "a@x.com", f.clk.Now(), 5*time.Minute)
	notUUID := jwks_testutil.Claims("user-123", "a@x.com", f.clk.Now(), 5*time.Minute)

	for _, c := range []sessiontoken.Claims{noSub, notUUID} {
		raw, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, testSecret, c)
		require.NoError(t, err)
		_, err = f.v.Verify(context.Background(), raw)
		assert.ErrorIs(t, err, jwtverifier.ErrMalformedClaims)
	}
}

func TestVerifier_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = f.v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, jwtverifier.ErrUnsupportedAlgorithm)
}

func TestVerifier_AudienceIsNotEnforced(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)
	claims.Audience = jwt.ClaimStrings{"anon"}

	raw, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, testSecret, claims)
	require.NoError(t, err)
	_, err = f.v.Verify(context.Background(), raw)
	require.NoError(t, err)
}

func TestVerifier_Garbage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.v.Verify(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, jwtverifier.ErrInvalid)
}

func TestVerifier_AcceptsLocallyIssuedToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	iss, err := sessiontoken.NewIssuer(testSecret, "", f.clk)
	require.NoError(t, err)
	tok, err := iss.Mint(testSub, "a@x.com", time.Hour)
	require.NoError(t, err)

	id, err := f.v.Verify(context.Background(), tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(testSub), id.UserID)
}

func TestJWKSCache_FetchesOncePerKid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)
	raw, err := jwks_testutil.MintAsymmetric(f.rsa, claims)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.v.Verify(context.Background(), raw)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The EC key arrived in the same document, so it needs no fetch either.
	ecRaw, err := jwks_testutil.MintAsymmetric(f.ec, claims)
	require.NoError(t, err)
	_, err = f.v.Verify(context.Background(), ecRaw)
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.jwks.Hits())
}

func TestJWKSCache_RotationNeedsRestart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)

	raw, err := jwks_testutil.MintAsymmetric(f.rsa, claims)
	require.NoError(t, err)
	_, err = f.v.Verify(context.Background(), raw)
	require.NoError(t, err)

	// The provider rotates kid-rsa to a new key. The cached key still wins.
	rotated, err := jwks_testutil.GenerateRSAKeypair(f.rsa.Kid)
	require.NoError(t, err)
	f.jwks.SetKeys([]jwks_testutil.Keypair{rotated})

	rotatedRaw, err := jwks_testutil.MintAsymmetric(rotated, claims)
	require.NoError(t, err)
	_, err = f.v.Verify(context.Background(), rotatedRaw)
	assert.ErrorIs(t, err, jwtverifier.ErrBadSignature)

	_, err = f.v.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.jwks.Hits())
}

func TestJWKSCache_UnknownKidsShareOneRefreshWindow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	claims := jwks_testutil.Claims(testSub, "", f.clk.Now(), 5*time.Minute)

	for i := 0; i < 200; i++ {
		forged, err := jwks_testutil.GenerateECKeypair(fmt.Sprintf("kid-forged-%d", i))
		require.NoError(t, err)
		raw, err := jwks_testutil.MintAsymmetric(forged, claims)
		require.NoError(t, err)
		_, err = f.v.Verify(context.Background(), raw)
		require.ErrorIs(t, err, jwtverifier.ErrBadSignature)
	}
	assert.Equal(t, int64(1), f.keys.Fetches())

	// Known keys keep resolving without a download inside the window.
	raw, err := jwks_testutil.MintAsymmetric(f.rsa, claims)
	require.NoError(t, err)
	_, err = f.v.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.keys.Fetches())

	// A key published under a new kid is picked up once the window has passed.
	added, err := jwks_testutil.GenerateECKeypair("kid-added")
	require.NoError(t, err)
	f.jwks.SetKeys([]jwks_testutil.Keypair{f.rsa, f.ec, added})

	_, err = f.keys.Key(context.Background(), "kid-added")
	assert.ErrorIs(t, err, jwtverifier.ErrKeyNotFound)
	assert.Equal(t, int64(1), f.keys.Fetches())

	f.clk.Advance(jwtverifier.DefaultRefreshInterval)
	_, err = f.keys.Key(context.Background(), "kid-added")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.keys.Fetches())
}

func TestJWKSCache_FetchFailureIsNotCached(t *testing.T) {
	t.Parallel()
	srv := jwks_testutil.NewRotatingJWKSServer()
	url := srv.URL
	srv.Close()

	clk := platformclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	cache := jwtverifier.NewJWKSCache(url, &http.Client{Timeout: time.Second},
		jwtverifier.WithCacheClock(clk))
	_, err := cache.Key(context.Background(), "kid-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, jwtverifier.ErrKeyNotFound)

	// Throttled callers see the failure, not a missing key.
	_, err = cache.Key(context.Background(), "kid-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, jwtverifier.ErrKeyNotFound)
	assert.Equal(t, int64(1), cache.Fetches())

	clk.Advance(jwtverifier.DefaultRefreshInterval)
	_, err = cache.Key(context.Background(), "kid-1")
	require.Error(t, err)
	assert.Equal(t, int64(2), cache.Fetches())
}

func TestJWKSCache_ZeroIntervalDisablesThrottle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	cache := jwtverifier.NewJWKSCache(f.jwks.URL, nil, jwtverifier.WithRefreshInterval(0))

	for i := 0; i < 3; i++ {
		_, err := cache.Key(context.Background(), "kid-nope")
		assert.ErrorIs(t, err, jwtverifier.ErrKeyNotFound)
	}
	assert.Equal(t, int64(3), cache.Fetches())
}

func TestJWKSCache_FetchSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	key, err := f.keys.Key(ctx, f.rsa.Kid)
	require.NoError(t, err)
	assert.NotNil(t, key)
}
