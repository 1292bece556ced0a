package projects

import (
	"context"
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/devlogs/devlogs-api/internal/app/apperr"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/clock"
	"github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

const maxNameLength = 255

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type Service struct {
	projects projectrepo.Repository
	clk      clock.Clock

	newProjectID func() domain.ProjectID
}

func NewService(repo projectrepo.Repository, clk clock.Clock) *Service {
	return &Service{
		projects: repo,
		clk:      clk,
		newProjectID: func() domain.ProjectID {
			return domain.ProjectID(uuid.NewString())
		},
	}
}

// SetNewProjectIDForTest overrides project ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewProjectIDForTest(fn func() domain.ProjectID) {
	if fn != nil {
		s.newProjectID = fn
	}
}

func (s *Service) Create(ctx context.Context, owner domain.UserID, in CreateInput) (domain.Project, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return domain.Project{}, err
	}
	color := domain.DefaultProjectColor
	if in.Color != nil {
		if !colorPattern.MatchString(*in.Color) {
			return domain.Project{}, invalidColor()
		}
		color = *in.Color
	}

	now := s.clk.Now().UTC()
	p := domain.Project{
		ID:          s.newProjectID(),
		UserID:      owner,
		Name:        name,
		Description: in.Description,
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		if errors.Is(err, projectrepo.ErrAlreadyExists) {
			return domain.Project{}, apperr.Conflict("PROJECT_ID_CONFLICT", "project id conflict")
		}
		return domain.Project{}, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, owner domain.UserID) (ListResult, error) {
	ps, err := s.projects.ListWithLogCount(ctx, owner)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: ps, Total: len(ps)}, nil
}

func (s *Service) Get(ctx context.Context, owner domain.UserID, id domain.ProjectID) (domain.Project, error) {
	p, err := s.projects.Get(ctx, owner, id)
	if err != nil {
		return domain.Project{}, mapRepoError(err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, owner domain.UserID, id domain.ProjectID, in UpdateInput) (domain.Project, error) {
	p, err := s.projects.Get(ctx, owner, id)
	if err != nil {
		return domain.Project{}, mapRepoError(err)
	}

	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return domain.Project{}, err
		}
		p.Name = name
	}
	if in.Description.IsSpecified() {
		p.Description = in.Description.Ptr()
	}
	if in.Color != nil {
		if !colorPattern.MatchString(*in.Color) {
			return domain.Project{}, invalidColor()
		}
		p.Color = *in.Color
	}
	p.UpdatedAt = s.clk.Now().UTC()

	if err := s.projects.Save(ctx, p); err != nil {
		return domain.Project{}, mapRepoError(err)
	}
	return p, nil
}

// Delete removes the project together with its logs.
func (s *Service) Delete(ctx context.Context, owner domain.UserID, id domain.ProjectID) error {
	if err := s.projects.Delete(ctx, owner, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := domain.NormalizeHumanName(raw)
	if name == "" {
		return "", apperr.Validation("invalid name", map[string]any{"name": "must be non-empty"})
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperr.Validation("invalid name", map[string]any{"name": "must be at most 255 characters"})
	}
	return name, nil
}

func invalidColor() *apperr.Error {
	return apperr.Validation("invalid color", map[string]any{"color": "must match #RRGGBB"})
}

func mapRepoError(err error) error {
	if errors.Is(err, projectrepo.ErrNotFound) {
		return NotFound()
	}
	return err
}

// NotFound is the error returned for absent projects and projects owned by someone else.
func NotFound() *apperr.Error {
	return apperr.NotFound("PROJECT_NOT_FOUND", "Project not found")
}
