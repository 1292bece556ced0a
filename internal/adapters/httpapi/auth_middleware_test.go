package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devlogs/devlogs-api/internal/platform/auth/jwks_testutil"
	"github.com/devlogs/devlogs-api/internal/platform/auth/jwtverifier"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// newTestAuthRouter guards a test route with the bearer middleware. The verifier accepts
// RS256 tokens published by a local JWKS server and HS256 tokens signed with testSecret.
func newTestAuthRouter(t *testing.T) (http.Handler, jwks_testutil.Keypair, time.Time) {
	t.Helper()

	jwksSrv := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(jwksSrv.Close)

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	jwksSrv.SetKeys([]jwks_testutil.Keypair{kp})

	now := time.Unix(1700000000, 0)
	v := jwtverifier.New(jwtverifier.Options{
		Secret:    testSecret,
		Keys:      jwtverifier.NewJWKSCache(jwksSrv.URL, nil),
		ClockSkew: 30 * time.Second,
		Clock:     fixedClock{t: now},
	})

	whoami := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.UserID == "" {
			writeError(w, r, http.StatusInternalServerError, "MISSING_SUBJECT", "subject missing from context", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sub": string(id.UserID), "email": id.Email})
	})
	return NewAuthMiddleware(v, logging.Discard())(whoami), kp, now
}

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware_MissingAuthorizationHeader(t *testing.T) {
	env := newTestEnv(t)

	rr := env.call(t, http.MethodGet, "/projects", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	var er errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Error.Code != "UNAUTHORIZED" || er.Error.Message != "missing Authorization header" {
		t.Fatalf("error = %+v", er.Error)
	}
	if er.Error.RequestID == "" {
		t.Fatalf("expected requestId to be set")
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	h, _, _ := newTestAuthRouter(t)

	for _, authz := range []string{"Token abc", "Bearer", "Basic dXNlcjpwdw=="} {
		rr := serve(h, authz)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d, want 401", authz, rr.Code)
		}
	}

	rr := serve(h, "Bearer   ")
	var er errorEnvelope
	_ = json.Unmarshal(rr.Body.Bytes(), &er)
	if rr.Code != http.StatusUnauthorized || er.Error.Message != "missing bearer token" {
		t.Fatalf("empty bearer: status=%d error=%+v", rr.Code, er.Error)
	}
}

func TestAuthMiddleware_AcceptsBothSigningFamilies(t *testing.T) {
	h, kp, now := newTestAuthRouter(t)
	const sub = "7f0c4d8e-2a61-4b0f-9c3d-1e2f3a4b5c6d"
	claims := jwks_testutil.Claims(sub, "dev@example.com", now, time.Hour)

	rsTok, err := jwks_testutil.MintAsymmetric(kp, claims)
	if err != nil {
		t.Fatalf("MintAsymmetric: %v", err)
	}
	hsTok, err := jwks_testutil.MintSymmetric(jwt.SigningMethodHS384, testSecret, claims)
	if err != nil {
		t.Fatalf("MintSymmetric: %v", err)
	}

	for name, tok := range map[string]string{"RS256": rsTok, "HS384": hsTok} {
		rr := serve(h, "bearer "+tok)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body=%s", name, rr.Code, rr.Body.String())
		}
		var got map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if got["sub"] != sub || got["email"] != "dev@example.com" {
			t.Fatalf("%s: identity = %v", name, got)
		}
	}
}

func TestAuthMiddleware_RejectionMessages(t *testing.T) {
	h, kp, now := newTestAuthRouter(t)
	const sub = "7f0c4d8e-2a61-4b0f-9c3d-1e2f3a4b5c6d"

	expired, _ := jwks_testutil.MintAsymmetric(kp, jwks_testutil.Claims(sub, "", now.Add(-2*time.Hour), time.Hour))
	wrongSecret, _ := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, "another-secret", jwks_testutil.Claims(sub, "", now, time.Hour))
	noSubject, _ := jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, testSecret, jwks_testutil.Claims("", "", now, time.Hour))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwks_testutil.Claims(sub, "", now, time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name string
		tok  string
		want string
	}{
		{"expired", expired, "token expired"},
		{"wrong secret", wrongSecret, "invalid token"},
		{"missing subject", noSubject, "invalid token"},
		{"alg none", unsigned, "unsupported token algorithm"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(h, "Bearer "+tc.tok)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			var er errorEnvelope
			if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if er.Error.Message != tc.want {
				t.Fatalf("message = %q, want %q", er.Error.Message, tc.want)
			}
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	whoami := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		_, _ = w.Write([]byte(id.UserID))
	})

	h := NewDevAuthMiddleware("")(whoami)
	if rr := serve(h, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without subject", rr.Code)
	}

	h = NewDevAuthMiddleware("default-sub")(whoami)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Debug-Subject", "override")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Body.String() != "override" {
		t.Fatalf("subject = %q, want override", rr.Body.String())
	}
	if rr := serve(h, ""); rr.Body.String() != "default-sub" {
		t.Fatalf("subject = %q, want default-sub", rr.Body.String())
	}
}
