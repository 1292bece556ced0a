package auth

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
	"github.com/devlogs/devlogs-api/internal/ports/out/identityprovider"
	"github.com/devlogs/devlogs-api/internal/ports/out/profilerepo"
)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) PasswordGrant(ctx context.Context, email, password string) (identityprovider.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(identityprovider.Session), args.Error(1)
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (identityprovider.SignUpResult, error) {
	args := m.Called(ctx, email, password, metadata)
	return args.Get(0).(identityprovider.SignUpResult), args.Error(1)
}

func (m *mockProvider) Verify(ctx context.Context, in identityprovider.VerifyInput) (identityprovider.Session, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(identityprovider.Session), args.Error(1)
}

func (m *mockProvider) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockProvider) AdminUpdateUser(ctx context.Context, id domain.UserID, u identityprovider.UserUpdate) (identityprovider.User, error) {
	args := m.Called(ctx, id, u)
	return args.Get(0).(identityprovider.User), args.Error(1)
}

type mockCredentials struct{ mock.Mock }

func (m *mockCredentials) VerifyPassword(ctx context.Context, email, password string) (credentialrepo.Verification, bool, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(credentialrepo.Verification), args.Bool(1), args.Error(2)
}

func (m *mockCredentials) LinkedProviders(ctx context.Context, id domain.UserID) ([]string, error) {
	args := m.Called(ctx, id)
	providers, _ := args.Get(0).([]string)
	return providers, args.Error(1)
}

type mockProfiles struct{ mock.Mock }

func (m *mockProfiles) Get(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *mockProfiles) Update(ctx context.Context, id domain.UserID, p profilerepo.Patch) (domain.Profile, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *mockProfiles) MarkEmailConfirmedByEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
