package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/devlogs/devlogs-api/internal/platform/auth/jwks_testutil"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
)

// Tiny dev-only session token issuer + JWKS server.
//
// This is NOT an identity provider. It mints tokens with the same claim shape the provider
// issues so the API's ES256 (JWKS) and HS256 (shared secret) verification paths can be
// exercised locally. Point JWT_JWKS_URL at http://localhost:5556/.well-known/jwks.json.

type options struct {
	Port   string        `env:"PORT" envDefault:"5556"`
	Kid    string        `env:"KID" envDefault:"dev-kid-1"`
	TTL    time.Duration `env:"TTL" envDefault:"30m"`
	Secret string        `env:"JWT_SECRET"`
}

func main() {
	log := logging.New(os.Stderr, "info", "text")

	var opts options
	if err := env.Parse(&opts); err != nil {
		log.Error("parse env", "error", err)
		os.Exit(1)
	}

	kp, err := jwks_testutil.GenerateECKeypair(opts.Kid)
	if err != nil {
		log.Error("generate key", "error", err)
		os.Exit(1)
	}
	jwksJSON, err := jwks_testutil.MarshalJWKS([]jwks_testutil.Keypair{kp})
	if err != nil {
		log.Error("marshal jwks", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Same path the provider publishes under, minus the /auth/v1 prefix.
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwksJSON)
	})

	// Mint a token:
	//   GET /token?sub=<uuid>&email=dev@example.com[&alg=HS256]
	// sub defaults to a fresh UUID; alg defaults to ES256.
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sub := strings.TrimSpace(q.Get("sub"))
		if sub == "" {
			sub = uuid.NewString()
		}
		if _, err := uuid.Parse(sub); err != nil {
			http.Error(w, "sub must be a UUID", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(q.Get("email"))
		alg := strings.ToUpper(strings.TrimSpace(q.Get("alg")))

		now := time.Now().UTC()
		claims := jwks_testutil.Claims(sub, email, now, opts.TTL)

		var (
			token string
			err   error
		)
		switch alg {
		case "", "ES256":
			alg = "ES256"
			token, err = jwks_testutil.MintAsymmetric(kp, claims)
		case "HS256":
			if opts.Secret == "" {
				http.Error(w, "JWT_SECRET is not set", http.StatusBadRequest)
				return
			}
			token, err = jwks_testutil.MintSymmetric(jwt.SigningMethodHS256, opts.Secret, claims)
		default:
			http.Error(w, "alg must be ES256 or HS256", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"alg":   alg,
			"sub":   sub,
			"email": email,
			"exp":   now.Add(opts.TTL).Unix(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("devjwt listening", "port", opts.Port, "kid", opts.Kid, "ttl", opts.TTL)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("listen", "error", err)
		os.Exit(1)
	}
}
