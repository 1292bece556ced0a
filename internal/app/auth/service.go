package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/devlogs/devlogs-api/internal/app/apperr"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
	"github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
	"github.com/devlogs/devlogs-api/internal/ports/out/identityprovider"
	"github.com/devlogs/devlogs-api/internal/ports/out/profilerepo"
)

const (
	defaultFallbackTTL = time.Hour
	defaultPendingTTL  = 10 * time.Minute

	minPasswordLength = 6
	maxNameLength     = 100
)

type Options struct {
	// FallbackTTL is the lifetime of tokens minted when the provider is unavailable.
	FallbackTTL time.Duration
	// PendingTTL is the lifetime of tokens minted for accounts awaiting email confirmation.
	PendingTTL time.Duration
	// Secrets are scrubbed from any error detail returned to callers.
	Secrets []string
	Logger  *slog.Logger
}

type Service struct {
	provider identityprovider.Provider
	creds    credentialrepo.Repository
	profiles profilerepo.Repository
	tokens   TokenMinter

	fallbackTTL time.Duration
	pendingTTL  time.Duration
	secrets     []string
	log         *slog.Logger
}

func NewService(
	provider identityprovider.Provider,
	creds credentialrepo.Repository,
	profiles profilerepo.Repository,
	tokens TokenMinter,
	opts Options,
) *Service {
	s := &Service{
		provider:    provider,
		creds:       creds,
		profiles:    profiles,
		tokens:      tokens,
		fallbackTTL: opts.FallbackTTL,
		pendingTTL:  opts.PendingTTL,
		secrets:     opts.Secrets,
		log:         opts.Logger,
	}
	if s.fallbackTTL <= 0 {
		s.fallbackTTL = defaultFallbackTTL
	}
	if s.pendingTTL <= 0 {
		s.pendingTTL = defaultPendingTTL
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// Login authenticates email/password.
//
// The provider is tried first. A provider rejection is final. Only when the provider is
// unavailable is the password checked against the credential store, and a local token minted.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, apperr.Validation("email and password are required", map[string]any{
			"email":    "required",
			"password": "required",
		})
	}

	outcome, sess, err := s.attemptProvider(ctx, email, in.Password)
	switch outcome {
	case providerSucceeded:
		return providerSession(sess, email), nil
	case providerRejected:
		s.log.InfoContext(ctx, "login rejected by identity provider", "status", providerStatus(err))
		return Session{}, apperr.InvalidCredentials().WithCause(err)
	}

	s.log.WarnContext(ctx, "identity provider unavailable, using password fallback",
		"outcome", outcome.String(), "status", providerStatus(err), "error", s.redact(err))
	return s.attemptFallback(ctx, email, in.Password)
}

func (s *Service) attemptProvider(ctx context.Context, email, password string) (providerOutcome, identityprovider.Session, error) {
	sess, err := s.provider.PasswordGrant(ctx, email, password)
	if err == nil {
		return providerSucceeded, sess, nil
	}
	if pe, ok := identityprovider.AsError(err); ok && pe.ClientError() {
		return providerRejected, identityprovider.Session{}, err
	}
	return providerUnavailable, identityprovider.Session{}, err
}

func (s *Service) attemptFallback(ctx context.Context, email, password string) (Session, error) {
	v, found, err := s.creds.VerifyPassword(ctx, email, password)
	if err != nil {
		s.log.ErrorContext(ctx, "password fallback failed", "error", s.redact(err))
		return Session{}, apperr.ServiceUnavailable(
			"Authentication service unavailable: " + s.redact(err),
		).WithCause(err)
	}
	if !found || !v.Valid {
		return Session{}, apperr.InvalidCredentials()
	}

	userEmail := v.Email
	if userEmail == "" {
		userEmail = email
	}
	tok, err := s.tokens.Mint(v.UserID, userEmail, s.fallbackTTL)
	if err != nil {
		return Session{}, err
	}
	name := domain.EmailLocalPart(userEmail)
	if v.Name != nil && strings.TrimSpace(*v.Name) != "" {
		name = *v.Name
	}
	s.log.InfoContext(ctx, "login served by password fallback", "user_id", v.UserID)
	return Session{
		AccessToken: tok.Raw,
		TokenType:   "bearer",
		ExpiresIn:   tok.TTL(),
		User:        User{ID: v.UserID, Email: userEmail, Name: name},
		Source:      SourceFallback,
	}, nil
}

// Signup registers a new account.
//
// An auto-confirmed account receives the provider session. Otherwise a short-lived local
// token is minted so the client can continue while the confirmation email is pending.
func (s *Service) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	email := strings.TrimSpace(in.Email)
	name := domain.NormalizeHumanName(in.Name)
	if err := validateCredentials(email, in.Password); err != nil {
		return SignupResult{}, err
	}
	if len([]rune(name)) > maxNameLength {
		return SignupResult{}, apperr.Validation("invalid name", map[string]any{"name": "must be at most 100 characters"})
	}

	var metadata map[string]any
	if name != "" {
		metadata = map[string]any{"name": name}
	}
	res, err := s.provider.SignUp(ctx, email, in.Password, metadata)
	if err != nil {
		return SignupResult{}, s.signupError(ctx, err)
	}
	if res.AlreadyRegistered {
		return SignupResult{}, apperr.Conflict("EMAIL_ALREADY_REGISTERED", "An account with this email already exists")
	}

	if res.Session != nil {
		return SignupResult{Session: providerSession(*res.Session, email)}, nil
	}

	userEmail := res.User.Email
	if userEmail == "" {
		userEmail = email
	}
	tok, err := s.tokens.MintPending(res.User.ID, userEmail, s.pendingTTL)
	if err != nil {
		return SignupResult{}, err
	}
	display := res.User.MetadataName()
	if display == "" {
		display = name
	}
	if display == "" {
		display = userEmail
	}
	return SignupResult{
		Session: Session{
			AccessToken: tok.Raw,
			TokenType:   "bearer",
			ExpiresIn:   tok.TTL(),
			User:        User{ID: res.User.ID, Email: userEmail, Name: display},
			Source:      SourcePending,
		},
		EmailConfirmationRequired: true,
	}, nil
}

func (s *Service) signupError(ctx context.Context, err error) error {
	pe, ok := identityprovider.AsError(err)
	if !ok || !pe.ClientError() {
		s.log.ErrorContext(ctx, "signup failed", "error", s.redact(err))
		return apperr.ServiceUnavailable("Signup service unavailable").WithCause(err)
	}
	// 422 is how the provider reports an existing account when it sends no code.
	if pe.AlreadyRegistered() || (pe.Status == 422 && pe.Code == "") {
		return apperr.Conflict("EMAIL_ALREADY_REGISTERED", "An account with this email already exists").WithCause(err)
	}
	return apperr.BadRequest("SIGNUP_REJECTED", providerMessage(pe, "Signup request was rejected")).WithCause(err)
}

// VerifyEmail confirms an email address and returns the resulting provider session.
func (s *Service) VerifyEmail(ctx context.Context, in VerifyEmailInput) (Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Token = strings.TrimSpace(in.Token)
	in.TokenHash = strings.TrimSpace(in.TokenHash)
	if in.TokenHash == "" && (in.Email == "" || in.Token == "") {
		return Session{}, apperr.Validation("token_hash, or email and token, are required", map[string]any{
			"token": "required",
		})
	}
	if in.Type == "" {
		in.Type = "email"
	}

	sess, err := s.provider.Verify(ctx, identityprovider.VerifyInput{
		Type:      in.Type,
		Email:     in.Email,
		Token:     in.Token,
		TokenHash: in.TokenHash,
	})
	if err != nil {
		return Session{}, s.proxyError(ctx, "verify email", err, "INVALID_VERIFICATION_TOKEN", "Verification token is invalid or expired")
	}

	confirmed := sess.User.Email
	if confirmed == "" {
		confirmed = in.Email
	}
	if confirmed != "" {
		if err := s.profiles.MarkEmailConfirmedByEmail(ctx, confirmed); err != nil {
			// The provider already confirmed the address; the profile flag catches up on next update.
			s.log.WarnContext(ctx, "mark profile email confirmed failed", "error", s.redact(err))
		}
	}
	return providerSession(sess, confirmed), nil
}

// ResendVerification asks the provider to send another confirmation email.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.provider.ResendVerification(ctx, email); err != nil {
		return s.proxyError(ctx, "resend verification", err, "RESEND_REJECTED", "Verification email could not be sent")
	}
	return nil
}

// SetPassword adds a password credential to an account that signed up through an OAuth provider.
func (s *Service) SetPassword(ctx context.Context, id domain.Identity, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation("invalid password", map[string]any{"password": "must be at least 6 characters"})
	}

	providers, err := s.creds.LinkedProviders(ctx, id.UserID)
	if err != nil {
		s.log.ErrorContext(ctx, "lookup linked identities failed", "error", s.redact(err))
		return apperr.ServiceUnavailable("Account service unavailable").WithCause(err)
	}
	if len(providers) == 0 {
		return apperr.NotFound("USER_NOT_FOUND", "No account exists for the authenticated user")
	}
	if slices.Contains(providers, credentialrepo.ProviderEmail) {
		return apperr.Conflict("PASSWORD_ALREADY_SET", "This account already has a password")
	}

	if _, err := s.provider.AdminUpdateUser(ctx, id.UserID, identityprovider.UserUpdate{Password: &password}); err != nil {
		return s.proxyError(ctx, "set password", err, "PASSWORD_REJECTED", "Password could not be set")
	}
	return nil
}

// Me returns the caller's profile. A caller without a profile row gets one built from the token.
func (s *Service) Me(ctx context.Context, id domain.Identity) (domain.Profile, error) {
	p, err := s.profiles.Get(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{UserID: id.UserID, Email: id.Email}, nil
		}
		s.log.ErrorContext(ctx, "load profile failed", "error", s.redact(err))
		return domain.Profile{}, apperr.ServiceUnavailable("Profile service unavailable").WithCause(err)
	}
	if p.Email == "" {
		p.Email = id.Email
	}
	return p, nil
}

// UpdateProfile patches the caller's name and display name.
func (s *Service) UpdateProfile(ctx context.Context, id domain.Identity, in UpdateProfileInput) (domain.Profile, error) {
	var patch profilerepo.Patch
	details := map[string]any{}
	if in.Name != nil {
		v := domain.NormalizeHumanName(*in.Name)
		if err := checkName(v); err != "" {
			details["name"] = err
		}
		patch.Name = &v
	}
	if in.DisplayName != nil {
		v := domain.NormalizeHumanName(*in.DisplayName)
		if err := checkName(v); err != "" {
			details["display_name"] = err
		}
		patch.DisplayName = &v
	}
	if patch.Name == nil && patch.DisplayName == nil {
		return domain.Profile{}, apperr.Validation("no fields to update", map[string]any{"body": "must contain name or display_name"})
	}
	if len(details) > 0 {
		return domain.Profile{}, apperr.Validation("invalid profile", details)
	}

	p, err := s.profiles.Update(ctx, id.UserID, patch)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, apperr.NotFound("PROFILE_NOT_FOUND", "No profile exists for the authenticated user")
		}
		s.log.ErrorContext(ctx, "update profile failed", "error", s.redact(err))
		return domain.Profile{}, apperr.ServiceUnavailable("Profile service unavailable").WithCause(err)
	}
	return p, nil
}

// proxyError translates a provider failure on a single-call flow.
func (s *Service) proxyError(ctx context.Context, op string, err error, code, message string) error {
	pe, ok := identityprovider.AsError(err)
	switch {
	case ok && pe.NotFound():
		return apperr.NotFound("USER_NOT_FOUND", providerMessage(pe, "User not found")).WithCause(err)
	case ok && pe.ClientError():
		return apperr.BadRequest(code, providerMessage(pe, message)).WithCause(err)
	}
	s.log.ErrorContext(ctx, op+" failed", "error", s.redact(err))
	return apperr.ServiceUnavailable("Identity provider unavailable").WithCause(err)
}

func (s *Service) redact(err error) string {
	if err == nil {
		return ""
	}
	return logging.Redact(err.Error(), s.secrets...)
}

func providerSession(sess identityprovider.Session, email string) Session {
	u := sess.User
	if u.Email != "" {
		email = u.Email
	}
	name := u.MetadataName()
	if name == "" {
		name = email
	}
	tokenType := strings.ToLower(sess.TokenType)
	if tokenType == "" {
		tokenType = "bearer"
	}
	return Session{
		AccessToken:  sess.AccessToken,
		TokenType:    tokenType,
		ExpiresIn:    sess.ExpiresIn,
		RefreshToken: sess.RefreshToken,
		User:         User{ID: u.ID, Email: email, Name: name},
		Source:       SourceProvider,
	}
}

func providerStatus(err error) int {
	if pe, ok := identityprovider.AsError(err); ok {
		return pe.Status
	}
	return 0
}

func providerMessage(pe *identityprovider.Error, fallback string) string {
	if m := strings.TrimSpace(pe.Message); m != "" {
		return m
	}
	return fallback
}

func validateCredentials(email, password string) error {
	details := map[string]any{}
	if err := validateEmail(email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(password) < minPasswordLength {
		details["password"] = "must be at least 6 characters"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid signup request", details)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("invalid email", map[string]any{"email": "required"})
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("invalid email", map[string]any{"email": "must be a valid email address"})
	}
	return nil
}

func checkName(v string) string {
	switch n := len([]rune(v)); {
	case n == 0:
		return "must be non-empty"
	case n > maxNameLength:
		return "must be at most 100 characters"
	}
	return ""
}
