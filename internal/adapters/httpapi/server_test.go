package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memcreds "github.com/devlogs/devlogs-api/internal/adapters/memory/credentialrepo"
	memidem "github.com/devlogs/devlogs-api/internal/adapters/memory/idempotency"
	memlogs "github.com/devlogs/devlogs-api/internal/adapters/memory/logrepo"
	memprofiles "github.com/devlogs/devlogs-api/internal/adapters/memory/profilerepo"
	memprojects "github.com/devlogs/devlogs-api/internal/adapters/memory/projectrepo"
	"github.com/devlogs/devlogs-api/internal/app/auth"
	"github.com/devlogs/devlogs-api/internal/app/devlogs"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/auth/jwtverifier"
	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
	"github.com/devlogs/devlogs-api/internal/platform/clock"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
	"github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
	"github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
	"github.com/devlogs/devlogs-api/internal/ports/out/identityprovider"
)

const (
	testSecret = "test-signing-secret-0123456789"
	userA      = "6f1c1d2e-0b7a-4a55-9d2f-3b1f0f8e2a11"
	userB      = "0d9e5a4c-7b21-4c3e-8f10-5a6b7c8d9e0f"
)

var testNow = time.Date(2025, 5, 20, 15, 30, 0, 0, time.UTC)

// fakeProvider is a scripted identity provider. Unset hooks answer with a 500.
type fakeProvider struct {
	grant  func(email, password string) (identityprovider.Session, error)
	signUp func(email, password string, metadata map[string]any) (identityprovider.SignUpResult, error)

	grants atomic.Int64
}

func (p *fakeProvider) PasswordGrant(_ context.Context, email, password string) (identityprovider.Session, error) {
	p.grants.Add(1)
	if p.grant == nil {
		return identityprovider.Session{}, &identityprovider.Error{Status: http.StatusInternalServerError}
	}
	return p.grant(email, password)
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string, metadata map[string]any) (identityprovider.SignUpResult, error) {
	if p.signUp == nil {
		return identityprovider.SignUpResult{}, &identityprovider.Error{Status: http.StatusInternalServerError}
	}
	return p.signUp(email, password, metadata)
}

func (p *fakeProvider) Verify(context.Context, identityprovider.VerifyInput) (identityprovider.Session, error) {
	return identityprovider.Session{}, &identityprovider.Error{Status: http.StatusBadRequest, Message: "Token has expired or is invalid"}
}

func (p *fakeProvider) ResendVerification(context.Context, string) error {
	return errors.New("dial tcp: connection refused")
}

func (p *fakeProvider) AdminUpdateUser(_ context.Context, id domain.UserID, _ identityprovider.UserUpdate) (identityprovider.User, error) {
	return identityprovider.User{ID: id}, nil
}

type testEnv struct {
	handler  http.Handler
	provider *fakeProvider
	creds    *memcreds.Repo
	profiles *memprofiles.Repo
	issuer   *sessiontoken.Issuer
	clock    *clock.ManualClock
}

type envOption func(*envConfig)

type envConfig struct {
	router RouterOptions
	creds  credentialrepo.Repository
	idem   idempotency.Store
	log    *slog.Logger
}

func withLoginLimiter(l *IPRateLimiter) envOption {
	return func(c *envConfig) { c.router.LoginLimiter = l }
}

// withIdempotencyStore replaces the store that backs Idempotency-Key replay.
func withIdempotencyStore(store idempotency.Store) envOption {
	return func(c *envConfig) { c.idem = store }
}

func withServerLogger(log *slog.Logger) envOption {
	return func(c *envConfig) { c.log = log }
}

// withCredentialStore replaces the password store the fallback tier consults.
func withCredentialStore(repo credentialrepo.Repository) envOption {
	return func(c *envConfig) { c.creds = repo }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var cfg envConfig
	for _, o := range opts {
		o(&cfg)
	}

	clk := clock.NewManualClock(testNow)
	issuer, err := sessiontoken.NewIssuer(testSecret, "", clk)
	require.NoError(t, err)

	provider := &fakeProvider{}
	creds := memcreds.NewRepo()
	if cfg.creds == nil {
		cfg.creds = creds
	}
	profiles := memprofiles.NewRepo()
	projectRepo := memprojects.NewRepo()
	logRepo := memlogs.NewRepo(projectRepo)
	projectRepo.AttachLogs(logRepo)

	authSvc := auth.NewService(provider, cfg.creds, profiles, issuer, auth.Options{
		Secrets: []string{testSecret},
		Logger:  logging.Discard(),
	})
	if cfg.idem == nil {
		cfg.idem = memidem.NewStore(clk, 0)
	}
	if cfg.log == nil {
		cfg.log = logging.Discard()
	}
	api := NewServer(
		authSvc,
		projects.NewService(projectRepo, clk),
		devlogs.NewService(logRepo, projectRepo, clk),
		cfg.idem,
		clk,
		cfg.log,
	)

	verifier := jwtverifier.New(jwtverifier.Options{Secret: testSecret, ClockSkew: 30 * time.Second, Clock: clk})
	cfg.router.AuthMiddleware = NewAuthMiddleware(verifier, logging.Discard())

	return &testEnv{
		handler:  NewRouter(api, cfg.router),
		provider: provider,
		creds:    creds,
		profiles: profiles,
		issuer:   issuer,
		clock:    clk,
	}
}

func (e *testEnv) token(t *testing.T, user, email string) string {
	t.Helper()
	tok, err := e.issuer.Mint(domain.UserID(user), email, time.Hour)
	require.NoError(t, err)
	return tok.Raw
}

// call issues a request. body may be nil, a raw string, or a value to encode as JSON.
func (e *testEnv) call(t *testing.T, method, path, bearer string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"requestId"`
	} `json:"error"`
}

func requireError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) errorEnvelope {
	t.Helper()
	require.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	env := decodeJSON[errorEnvelope](t, rr)
	require.Equal(t, code, env.Error.Code)
	require.NotEmpty(t, env.Error.Message)
	return env
}
