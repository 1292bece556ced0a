package profilerepo

import (
	"context"
	"strings"
	"sync"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/profilerepo"
)

// Repo is an in-memory implementation of profilerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.UserID]domain.Profile
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.UserID]domain.Profile)}
}

// Put inserts or replaces a profile row.
func (r *Repo) Put(p domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.UserID] = cloneProfile(p)
}

func (r *Repo) Get(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *Repo) Update(ctx context.Context, id domain.UserID, patch profilerepo.Patch) (domain.Profile, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = cloneStringPtr(patch.Name)
	}
	if patch.DisplayName != nil {
		p.DisplayName = cloneStringPtr(patch.DisplayName)
	}
	if patch.EmailConfirmed != nil {
		p.EmailConfirmed = *patch.EmailConfirmed
	}
	r.byID[id] = p
	return cloneProfile(p), nil
}

func (r *Repo) MarkEmailConfirmedByEmail(ctx context.Context, email string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.byID {
		if strings.EqualFold(p.Email, email) {
			p.EmailConfirmed = true
			r.byID[id] = p
		}
	}
	return nil
}

func cloneProfile(p domain.Profile) domain.Profile {
	out := p
	out.Name = cloneStringPtr(p.Name)
	out.DisplayName = cloneStringPtr(p.DisplayName)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
