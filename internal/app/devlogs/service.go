package devlogs

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/devlogs/devlogs-api/internal/app/apperr"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/clock"
	"github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
	"github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

const (
	maxTitleLength = 255
	maxDailyHours  = 24
)

type Service struct {
	logs     logrepo.Repository
	projects projectrepo.Repository
	clk      clock.Clock

	newLogID func() domain.LogID
}

func NewService(logs logrepo.Repository, projectsRepo projectrepo.Repository, clk clock.Clock) *Service {
	return &Service{
		logs:     logs,
		projects: projectsRepo,
		clk:      clk,
		newLogID: func() domain.LogID {
			return domain.LogID(uuid.NewString())
		},
	}
}

// SetNewLogIDForTest overrides log ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewLogIDForTest(fn func() domain.LogID) {
	if fn != nil {
		s.newLogID = fn
	}
}

func (s *Service) Create(ctx context.Context, owner domain.UserID, in CreateInput) (domain.DevLog, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return domain.DevLog{}, err
	}
	if err := validateContent(in.Content); err != nil {
		return domain.DevLog{}, err
	}
	visibility := domain.VisibilityPrivate
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return domain.DevLog{}, invalidVisibility()
		}
		visibility = *in.Visibility
	}
	if err := s.requireProject(ctx, owner, in.ProjectID); err != nil {
		return domain.DevLog{}, err
	}

	logDate := clock.Today(s.clk)
	if in.LogDate != nil {
		logDate = domain.DateOnly(*in.LogDate)
	}
	content := in.Content
	if content == nil {
		content = map[string]any{}
	}

	now := s.clk.Now().UTC()
	l := domain.DevLog{
		ID:         s.newLogID(),
		UserID:     owner,
		ProjectID:  in.ProjectID,
		LogDate:    logDate,
		Title:      title,
		Content:    content,
		Tags:       domain.NormalizeTags(in.Tags),
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.logs.Create(ctx, l); err != nil {
		switch {
		case errors.Is(err, logrepo.ErrAlreadyExists):
			return domain.DevLog{}, apperr.Conflict("LOG_ID_CONFLICT", "log id conflict")
		case errors.Is(err, logrepo.ErrNotFound):
			return domain.DevLog{}, projects.NotFound()
		}
		return domain.DevLog{}, err
	}
	return s.Get(ctx, owner, l.ID)
}

func (s *Service) Get(ctx context.Context, owner domain.UserID, id domain.LogID) (domain.DevLog, error) {
	l, err := s.logs.Get(ctx, owner, id)
	if err != nil {
		return domain.DevLog{}, mapRepoError(err)
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, owner domain.UserID, in ListInput) (ListResult, error) {
	page, size, err := pageParams(in.Page, in.PageSize)
	if err != nil {
		return ListResult{}, err
	}
	f := logrepo.Filter{
		ProjectID: in.ProjectID,
		From:      in.From,
		To:        in.To,
		Tags:      domain.NormalizeTags(in.Tags),
		Search:    strings.TrimSpace(in.Search),
	}
	items, total, err := s.logs.List(ctx, owner, f, logrepo.Page{Number: page, Size: size})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: size,
		HasMore:  page*size < total,
	}, nil
}

func (s *Service) Update(ctx context.Context, owner domain.UserID, id domain.LogID, in UpdateInput) (domain.DevLog, error) {
	l, err := s.logs.Get(ctx, owner, id)
	if err != nil {
		return domain.DevLog{}, mapRepoError(err)
	}

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return domain.DevLog{}, err
		}
		l.Title = title
	}
	if in.Content != nil {
		if err := validateContent(in.Content); err != nil {
			return domain.DevLog{}, err
		}
		l.Content = maps.Clone(in.Content)
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return domain.DevLog{}, invalidVisibility()
		}
		l.Visibility = *in.Visibility
	}
	if in.ProjectID != nil && *in.ProjectID != l.ProjectID {
		if err := s.requireProject(ctx, owner, *in.ProjectID); err != nil {
			return domain.DevLog{}, err
		}
		l.ProjectID = *in.ProjectID
	}
	if in.LogDate != nil {
		l.LogDate = domain.DateOnly(*in.LogDate)
	}
	if in.Tags != nil {
		l.Tags = domain.NormalizeTags(in.Tags)
	}
	l.UpdatedAt = s.clk.Now().UTC()

	if err := s.logs.Save(ctx, l); err != nil {
		return domain.DevLog{}, mapRepoError(err)
	}
	return s.Get(ctx, owner, id)
}

func (s *Service) Delete(ctx context.Context, owner domain.UserID, id domain.LogID) error {
	if err := s.logs.Delete(ctx, owner, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (s *Service) requireProject(ctx context.Context, owner domain.UserID, id domain.ProjectID) error {
	if id == "" {
		return apperr.Validation("invalid project_id", map[string]any{"project_id": "is required"})
	}
	if _, err := s.projects.Get(ctx, owner, id); err != nil {
		if errors.Is(err, projectrepo.ErrNotFound) {
			return projects.NotFound()
		}
		return err
	}
	return nil
}

func pageParams(page, size int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		return 0, 0, apperr.Validation("invalid page", map[string]any{"page": "must be at least 1"})
	}
	if size < 1 || size > MaxPageSize {
		return 0, 0, apperr.Validation("invalid page_size", map[string]any{"page_size": "must be between 1 and 100"})
	}
	return page, size, nil
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apperr.Validation("invalid title", map[string]any{"title": "must be non-empty"})
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", apperr.Validation("invalid title", map[string]any{"title": "must be at most 255 characters"})
	}
	return title, nil
}

// validateContent checks the well-known content keys; everything else is free-form.
func validateContent(c map[string]any) error {
	v, ok := c[domain.ContentTimeSpentHours]
	if !ok || v == nil {
		return nil
	}
	var hours float64
	switch n := v.(type) {
	case float64:
		hours = n
	case int:
		hours = float64(n)
	case int64:
		hours = float64(n)
	default:
		return invalidHours()
	}
	if hours < 0 || hours > maxDailyHours {
		return invalidHours()
	}
	return nil
}

func invalidHours() *apperr.Error {
	return apperr.Validation("invalid content_json", map[string]any{"content_json.time_spent_hours": "must be a number between 0 and 24"})
}

func invalidVisibility() *apperr.Error {
	return apperr.Validation("invalid visibility", map[string]any{"visibility": "must be one of private, team, public"})
}

func mapRepoError(err error) error {
	if errors.Is(err, logrepo.ErrNotFound) {
		return NotFound()
	}
	return err
}

func NotFound() *apperr.Error {
	return apperr.NotFound("LOG_NOT_FOUND", "Log not found")
}

func dateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
