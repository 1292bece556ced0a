package projectrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

// LogIndex is the slice of the log store a project store needs for counts and cascades.
type LogIndex interface {
	CountByProject(owner domain.UserID, id domain.ProjectID) int
	DeleteByProject(owner domain.UserID, id domain.ProjectID)
}

// Repo is an in-memory implementation of projectrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.ProjectID]domain.Project
	logs LogIndex
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.ProjectID]domain.Project)}
}

// AttachLogs connects the log store used for log counts and delete cascades.
func (r *Repo) AttachLogs(logs LogIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = logs
}

func (r *Repo) Create(ctx context.Context, p domain.Project) error {
	_ = ctx
	if p.ID == "" {
		return projectrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return projectrepo.ErrAlreadyExists
	}
	r.byID[p.ID] = cloneProject(p)
	return nil
}

func (r *Repo) Save(ctx context.Context, p domain.Project) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[p.ID]
	if !ok || existing.UserID != p.UserID {
		return projectrepo.ErrNotFound
	}
	r.byID[p.ID] = cloneProject(p)
	return nil
}

func (r *Repo) Get(ctx context.Context, owner domain.UserID, id domain.ProjectID) (domain.Project, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok || p.UserID != owner {
		return domain.Project{}, projectrepo.ErrNotFound
	}
	return cloneProject(p), nil
}

func (r *Repo) ListWithLogCount(ctx context.Context, owner domain.UserID) ([]domain.Project, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]domain.Project, 0)
	for _, p := range r.byID {
		if p.UserID == owner {
			out = append(out, cloneProject(p))
		}
	}
	logs := r.logs
	r.mu.RUnlock()

	if logs != nil {
		for i := range out {
			out[i].LogCount = logs.CountByProject(owner, out[i].ID)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, owner domain.UserID, id domain.ProjectID) error {
	_ = ctx
	r.mu.Lock()
	p, ok := r.byID[id]
	if !ok || p.UserID != owner {
		r.mu.Unlock()
		return projectrepo.ErrNotFound
	}
	delete(r.byID, id)
	logs := r.logs
	r.mu.Unlock()

	if logs != nil {
		logs.DeleteByProject(owner, id)
	}
	return nil
}

func cloneProject(p domain.Project) domain.Project {
	out := p
	if p.Description != nil {
		v := *p.Description
		out.Description = &v
	}
	return out
}
