package credentialrepo

import (
	"context"

	"github.com/devlogs/devlogs-api/internal/domain"
)

// ProviderEmail is the identity-linkage provider name used for password credentials.
const ProviderEmail = "email"

// Verification is the single row returned by the password-verification function.
type Verification struct {
	Valid  bool
	UserID domain.UserID
	Email  string
	// Name is the stored display name; nil when the user never set one.
	Name *string
}

// Repository is the data-store side of credential handling.
//
// VerifyPassword calls the store's password-verification function. found=false means
// the function returned no row at all. Any error means the call itself failed.
type Repository interface {
	VerifyPassword(ctx context.Context, email, password string) (v Verification, found bool, err error)

	// LinkedProviders returns the identity providers linked to the user (e.g. "email", "github").
	LinkedProviders(ctx context.Context, id domain.UserID) ([]string, error)
}
