package profilerepo

import (
	"context"

	"github.com/devlogs/devlogs-api/internal/domain"
)

// Patch is a partial profile update. A nil field is left untouched.
type Patch struct {
	Name           *string
	DisplayName    *string
	EmailConfirmed *bool
}

// Repository provides access to the profiles table.
type Repository interface {
	Get(ctx context.Context, id domain.UserID) (domain.Profile, error)

	// Update applies p to the profile row and returns the updated row.
	// ErrNotFound is returned when no row exists for id.
	Update(ctx context.Context, id domain.UserID, p Patch) (domain.Profile, error)

	// MarkEmailConfirmedByEmail flips the email-confirmed flag for the profile owning email.
	// It is a no-op when no profile has that email.
	MarkEmailConfirmedByEmail(ctx context.Context, email string) error
}
