package projects

import (
	"github.com/devlogs/devlogs-api/internal/app/optional"
	"github.com/devlogs/devlogs-api/internal/domain"
)

type CreateInput struct {
	Name        string
	Description *string
	// Color defaults to domain.DefaultProjectColor when nil.
	Color *string
}

type UpdateInput struct {
	Name        *string
	Description optional.Value[string]
	Color       *string
}

type ListResult struct {
	Items []domain.Project
	Total int
}
