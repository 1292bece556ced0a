package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devlogs/devlogs-api/internal/adapters/gotrue"
	"github.com/devlogs/devlogs-api/internal/adapters/httpapi"
	memcreds "github.com/devlogs/devlogs-api/internal/adapters/memory/credentialrepo"
	memidempotency "github.com/devlogs/devlogs-api/internal/adapters/memory/idempotency"
	memlogs "github.com/devlogs/devlogs-api/internal/adapters/memory/logrepo"
	memprofiles "github.com/devlogs/devlogs-api/internal/adapters/memory/profilerepo"
	memprojects "github.com/devlogs/devlogs-api/internal/adapters/memory/projectrepo"
	pgcreds "github.com/devlogs/devlogs-api/internal/adapters/postgres/credentialrepo"
	pgidempotency "github.com/devlogs/devlogs-api/internal/adapters/postgres/idempotency"
	pglogs "github.com/devlogs/devlogs-api/internal/adapters/postgres/logrepo"
	pgprofiles "github.com/devlogs/devlogs-api/internal/adapters/postgres/profilerepo"
	pgprojects "github.com/devlogs/devlogs-api/internal/adapters/postgres/projectrepo"
	postgres_testutil "github.com/devlogs/devlogs-api/internal/adapters/postgres/testutil"
	"github.com/devlogs/devlogs-api/internal/app/auth"
	"github.com/devlogs/devlogs-api/internal/app/devlogs"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
	"github.com/devlogs/devlogs-api/internal/platform/clock"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
	credentialport "github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
	idempotencyport "github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
	logrepoport "github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
	profilerepoport "github.com/devlogs/devlogs-api/internal/ports/out/profilerepo"
	projectrepoport "github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

const (
	itestSecret = "itest-signing-secret"

	// The account the stub provider and the password store both know.
	knownUserID   = "3c5a7e9b-1d2f-4a6b-8c0d-2e4f6a8b0c1d"
	knownEmail    = "dev@example.com"
	knownPassword = "correct-horse"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

// stubProvider is a GoTrue stand-in. While down it answers 503, which the login flow
// treats as the provider being unavailable.
type stubProvider struct {
	*httptest.Server
	down   atomic.Bool
	grants atomic.Int64
}

func newStubProvider(t *testing.T) *stubProvider {
	t.Helper()
	p := &stubProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		p.grants.Add(1)
		if p.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body.Email != knownEmail || body.Password != knownPassword {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "bearer",
			"expires_in":   3600,
			"user": map[string]any{
				"id":            knownUserID,
				"email":         knownEmail,
				"user_metadata": map[string]any{"full_name": "Dev Example"},
			},
		})
	})
	mux.HandleFunc("POST /auth/v1/signup", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"msg":"User already registered"}`))
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

type testServer struct {
	baseURL  string
	client   *http.Client
	provider *stubProvider
}

type stores struct {
	creds    credentialport.Repository
	profiles profilerepoport.Repository
	projects projectrepoport.Repository
	logs     logrepoport.Repository
	idem     idempotencyport.Store
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := clock.NewManualClock(time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC))

	var st stores
	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		seedPostgresUser(t, pool)
		st = stores{
			creds:    pgcreds.NewRepo(pool),
			profiles: pgprofiles.NewRepo(pool),
			projects: pgprojects.NewRepo(pool),
			logs:     pglogs.NewRepo(pool),
			idem:     pgidempotency.NewStore(pool, clk, 0),
		}
	case backendMemory:
		creds := memcreds.NewRepo()
		if err := creds.AddPasswordUser(knownUserID, knownEmail, knownPassword, nil); err != nil {
			t.Fatalf("seed credentials: %v", err)
		}
		projectRepo := memprojects.NewRepo()
		logRepo := memlogs.NewRepo(projectRepo)
		projectRepo.AttachLogs(logRepo)
		st = stores{
			creds:    creds,
			profiles: memprofiles.NewRepo(),
			projects: projectRepo,
			logs:     logRepo,
			idem:     memidempotency.NewStore(clk, 0),
		}
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	provider := newStubProvider(t)
	issuer, err := sessiontoken.NewIssuer(itestSecret, "", clk)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	authSvc := auth.NewService(
		gotrue.New(gotrue.Config{BaseURL: provider.URL, AnonKey: "anon", ServiceKey: "service", Timeout: 2 * time.Second}),
		st.creds, st.profiles, issuer,
		auth.Options{Secrets: []string{itestSecret, "service"}, Logger: logging.Discard()},
	)
	api := httpapi.NewServer(
		authSvc,
		projects.NewService(st.projects, clk),
		devlogs.NewService(st.logs, st.projects, clk),
		st.idem,
		clk,
		logging.Discard(),
	)

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// An empty default subject means requests MUST provide X-Debug-Subject, allowing
	// auth-failure coverage.
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewDevAuthMiddleware("")})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL:  srv.URL,
		client:   srv.Client(),
		provider: provider,
	}
}

func seedPostgresUser(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx,
		`INSERT INTO auth.users (id, email, encrypted_password) VALUES ($1, $2, crypt($3, gen_salt('bf')))`,
		knownUserID, knownEmail, knownPassword)
	if err != nil {
		t.Fatalf("seed auth.users: %v", err)
	}
	_, err = pool.Exec(ctx, `INSERT INTO auth.identities (user_id, provider) VALUES ($1, 'email')`, knownUserID)
	if err != nil {
		t.Fatalf("seed auth.identities: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM auth.users WHERE id = $1`, knownUserID)
	})
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
