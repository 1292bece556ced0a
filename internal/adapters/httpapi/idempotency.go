package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
)

const (
	idempotencyKeyHeader   = "Idempotency-Key"
	idempotentReplayHeader = "Idempotent-Replayed"
)

// idemScope is the response fingerprint of a request that carries an Idempotency-Key.
type idemScope struct {
	resp idempotency.Fingerprint
}

// beginIdempotent handles the Idempotency-Key protocol for a mutating request:
// - replay the stored response if the same user+key+route+body was seen before
// - reject reuse of a key with a different body (409)
//
// done=true means the response has already been written. A nil scope means the request is
// not idempotent (no key, or no store configured).
func (s *Server) beginIdempotent(w http.ResponseWriter, r *http.Request, user domain.UserID, route string, body any) (scope *idemScope, done bool) {
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.Idem == nil {
		return nil, false
	}
	bodyHash, err := hashBody(body)
	if err != nil {
		s.fail(w, r, err)
		return nil, true
	}

	ctx := r.Context()
	metaFP := idempotency.Fingerprint{
		Key:    idempotency.Key(key),
		User:   user,
		Method: r.Method,
		Route:  route,
	}
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		s.fail(w, r, err)
		return nil, true
	}
	if ok {
		if string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return nil, true
		}
	} else {
		err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   s.now(),
		})
		if err != nil {
			s.Log.WarnContext(ctx, "idempotency key not recorded", "route", route, "error", err)
		}
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	rec, ok, err := s.Idem.Get(ctx, respFP)
	if err != nil {
		s.fail(w, r, err)
		return nil, true
	}
	if ok && rec.StatusCode != 0 {
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set(idempotentReplayHeader, "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return nil, true
	}
	return &idemScope{resp: respFP}, false
}

// writeIdempotentJSON writes v and, when scope is set, stores it for replay.
func (s *Server) writeIdempotentJSON(w http.ResponseWriter, r *http.Request, scope *idemScope, status int, v any) {
	if scope == nil {
		writeJSON(w, status, v)
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.Idem.Put(r.Context(), scope.resp, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.Log.WarnContext(r.Context(), "idempotent response not stored", "route", scope.resp.Route, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func hashBody(body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
