package credentialrepo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
)

type account struct {
	id        domain.UserID
	email     string
	name      *string
	hash      []byte
	providers []string
}

// Repo is an in-memory implementation of credentialrepo.Repository.
// Passwords are stored as bcrypt hashes, matching what the database function compares against.
// It is safe for concurrent use.
type Repo struct {
	mu      sync.RWMutex
	byEmail map[string]*account
	byID    map[domain.UserID]*account
	cost    int
}

func NewRepo() *Repo {
	return &Repo{
		byEmail: make(map[string]*account),
		byID:    make(map[domain.UserID]*account),
		cost:    bcrypt.MinCost,
	}
}

// AddPasswordUser registers an account with an email/password identity.
func (r *Repo) AddPasswordUser(id domain.UserID, email, password string, name *string) error {
	if id == "" || email == "" {
		return errors.New("credentialrepo: id and email are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.ensure(id, email)
	a.hash = hash
	if name != nil {
		v := *name
		a.name = &v
	}
	a.link(credentialrepo.ProviderEmail)
	return nil
}

// LinkProvider records a non-password identity (e.g. "github") for the account.
func (r *Repo) LinkProvider(id domain.UserID, email, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(id, email).link(provider)
}

func (r *Repo) VerifyPassword(ctx context.Context, email, password string) (credentialrepo.Verification, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return credentialrepo.Verification{}, false, nil
	}
	if a.hash == nil || bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return credentialrepo.Verification{Valid: false}, true, nil
	}
	v := credentialrepo.Verification{Valid: true, UserID: a.id, Email: a.email}
	if a.name != nil {
		n := *a.name
		v.Name = &n
	}
	return v, true, nil
}

func (r *Repo) LinkedProviders(ctx context.Context, id domain.UserID) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), a.providers...), nil
}

// ensure must be called with mu held.
func (r *Repo) ensure(id domain.UserID, email string) *account {
	if a, ok := r.byID[id]; ok {
		return a
	}
	a := &account{id: id, email: email}
	r.byID[id] = a
	r.byEmail[strings.ToLower(email)] = a
	return a
}

func (a *account) link(provider string) {
	for _, p := range a.providers {
		if p == provider {
			return
		}
	}
	a.providers = append(a.providers, provider)
}
