package projectrepo

import (
	"context"

	"github.com/devlogs/devlogs-api/internal/domain"
)

// Repository provides access to persisted projects.
//
// Every method is scoped by owner: a project owned by another user behaves as ErrNotFound.
//
// Result ordering expectations:
// - ListWithLogCount returns projects ordered by CreatedAt descending, then ID.
type Repository interface {
	Create(ctx context.Context, p domain.Project) error
	Save(ctx context.Context, p domain.Project) error

	Get(ctx context.Context, owner domain.UserID, id domain.ProjectID) (domain.Project, error)
	ListWithLogCount(ctx context.Context, owner domain.UserID) ([]domain.Project, error)

	// Delete removes the project and all of its logs.
	Delete(ctx context.Context, owner domain.UserID, id domain.ProjectID) error
}
