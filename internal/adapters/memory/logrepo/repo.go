package logrepo

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
	"github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

// ProjectReader resolves the project joined onto each returned entry.
type ProjectReader interface {
	Get(ctx context.Context, owner domain.UserID, id domain.ProjectID) (domain.Project, error)
}

// Repo is an in-memory implementation of logrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu       sync.RWMutex
	byID     map[domain.LogID]domain.DevLog
	projects ProjectReader
}

func NewRepo(projects ProjectReader) *Repo {
	return &Repo{
		byID:     make(map[domain.LogID]domain.DevLog),
		projects: projects,
	}
}

func (r *Repo) Create(ctx context.Context, l domain.DevLog) error {
	_ = ctx
	if l.ID == "" {
		return logrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[l.ID]; ok {
		return logrepo.ErrAlreadyExists
	}
	r.byID[l.ID] = cloneLog(l)
	return nil
}

func (r *Repo) Save(ctx context.Context, l domain.DevLog) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[l.ID]
	if !ok || existing.UserID != l.UserID {
		return logrepo.ErrNotFound
	}
	r.byID[l.ID] = cloneLog(l)
	return nil
}

func (r *Repo) Get(ctx context.Context, owner domain.UserID, id domain.LogID) (domain.DevLog, error) {
	r.mu.RLock()
	l, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok || l.UserID != owner {
		return domain.DevLog{}, logrepo.ErrNotFound
	}
	out := cloneLog(l)
	if err := r.join(ctx, &out); err != nil {
		return domain.DevLog{}, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, owner domain.UserID, id domain.LogID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok || l.UserID != owner {
		return logrepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) List(ctx context.Context, owner domain.UserID, f logrepo.Filter, p logrepo.Page) ([]domain.DevLog, int, error) {
	r.mu.RLock()
	matched := make([]domain.DevLog, 0)
	for _, l := range r.byID {
		if l.UserID == owner && matches(l, f) {
			matched = append(matched, cloneLog(l))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.LogDate.Equal(b.LogDate) {
			return a.LogDate.After(b.LogDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start, end := pageBounds(p, total)
	out := matched[start:end]
	for i := range out {
		if err := r.join(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *Repo) Stats(ctx context.Context, owner domain.UserID, from, to time.Time) (logrepo.PeriodStats, error) {
	_ = ctx
	from, to = domain.DateOnly(from), domain.DateOnly(to)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var st logrepo.PeriodStats
	projects := map[domain.ProjectID]struct{}{}
	for _, l := range r.byID {
		if l.UserID != owner || l.LogDate.Before(from) || l.LogDate.After(to) {
			continue
		}
		st.LogCount++
		st.HoursLogged += l.HoursSpent()
		projects[l.ProjectID] = struct{}{}
	}
	st.ActiveProjects = len(projects)
	return st, nil
}

// CountByProject implements the project store's LogIndex.
func (r *Repo) CountByProject(owner domain.UserID, id domain.ProjectID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, l := range r.byID {
		if l.UserID == owner && l.ProjectID == id {
			n++
		}
	}
	return n
}

// DeleteByProject implements the project store's LogIndex.
func (r *Repo) DeleteByProject(owner domain.UserID, id domain.ProjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for lid, l := range r.byID {
		if l.UserID == owner && l.ProjectID == id {
			delete(r.byID, lid)
		}
	}
}

func (r *Repo) join(ctx context.Context, l *domain.DevLog) error {
	if r.projects == nil {
		return nil
	}
	p, err := r.projects.Get(ctx, l.UserID, l.ProjectID)
	if err != nil {
		if errors.Is(err, projectrepo.ErrNotFound) {
			return nil
		}
		return err
	}
	name, color := p.Name, p.Color
	l.ProjectName = &name
	l.ProjectColor = &color
	return nil
}

func matches(l domain.DevLog, f logrepo.Filter) bool {
	if f.ProjectID != nil && l.ProjectID != *f.ProjectID {
		return false
	}
	if f.From != nil && l.LogDate.Before(domain.DateOnly(*f.From)) {
		return false
	}
	if f.To != nil && l.LogDate.After(domain.DateOnly(*f.To)) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(l.Tags, t) }) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(l.Title), q) && !strings.Contains(strings.ToLower(l.Summary()), q) {
			return false
		}
	}
	return true
}

func pageBounds(p logrepo.Page, total int) (int, int) {
	if p.Size <= 0 {
		return 0, total
	}
	number := max(p.Number, 1)
	start := min((number-1)*p.Size, total)
	end := min(start+p.Size, total)
	return start, end
}

func cloneLog(l domain.DevLog) domain.DevLog {
	out := l
	out.Content = maps.Clone(l.Content)
	out.Tags = slices.Clone(l.Tags)
	if l.AISummary != nil {
		v := *l.AISummary
		out.AISummary = &v
	}
	out.ProjectName = nil
	out.ProjectColor = nil
	return out
}
