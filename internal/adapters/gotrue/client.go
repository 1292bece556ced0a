// Package gotrue implements identityprovider.Provider against a Supabase Auth (GoTrue) server.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/identityprovider"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20
)

var errUndecodable = errors.New("gotrue: undecodable response")

type Config struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co. The /auth/v1 prefix is appended.
	BaseURL string
	// AnonKey authenticates public endpoints.
	AnonKey string
	// ServiceKey authenticates admin endpoints.
	ServiceKey string
	Timeout    time.Duration
}

// Client is a GoTrue HTTP client. It is safe for concurrent use.
type Client struct {
	base       string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

var _ identityprovider.Provider = (*Client)(nil)

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// JWKSURL is the provider's published key set.
func (c *Client) JWKSURL() string {
	return c.base + "/.well-known/jwks.json"
}

// HTTPClient returns the underlying client so the key cache shares timeout and transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

type userBody struct {
	ID                 string         `json:"id"`
	Email              string         `json:"email"`
	UserMetadata       map[string]any `json:"user_metadata"`
	EmailConfirmedAt   *time.Time     `json:"email_confirmed_at"`
	ConfirmationSentAt *time.Time     `json:"confirmation_sent_at"`
	// Nil when the response omits the field. An empty list marks an obfuscated user.
	Identities *[]identityBody `json:"identities"`
}

type identityBody struct {
	Provider string `json:"provider"`
}

func (u userBody) obfuscated() bool {
	return u.Identities != nil && len(*u.Identities) == 0
}

func (u userBody) toPort() identityprovider.User {
	return identityprovider.User{
		ID:               domain.UserID(u.ID),
		Email:            u.Email,
		Metadata:         u.UserMetadata,
		EmailConfirmed:   u.EmailConfirmedAt != nil,
		ConfirmationSent: u.ConfirmationSentAt != nil,
	}
}

type sessionBody struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	RefreshToken string   `json:"refresh_token"`
	User         userBody `json:"user"`
}

func (s sessionBody) toPort() identityprovider.Session {
	return identityprovider.Session{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		RefreshToken: s.RefreshToken,
		User:         s.User.toPort(),
	}
}

// signupBody covers both signup response shapes: a session when the account is
// auto-confirmed, or the bare user while confirmation is pending.
type signupBody struct {
	sessionBody
	userBody
}

func (c *Client) PasswordGrant(ctx context.Context, email, password string) (identityprovider.Session, error) {
	var out sessionBody
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", c.anonKey,
		map[string]string{"email": email, "password": password}, &out)
	if errors.Is(err, errUndecodable) || (err == nil && out.AccessToken == "") {
		// The provider answered but granted no session: a rejection, not an outage.
		return identityprovider.Session{}, &identityprovider.Error{
			Status:  http.StatusUnauthorized,
			Code:    "no_session",
			Message: "Identity provider returned no session",
		}
	}
	if err != nil {
		return identityprovider.Session{}, err
	}
	return out.toPort(), nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (identityprovider.SignUpResult, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	var out signupBody
	if err := c.do(ctx, http.MethodPost, "/signup", c.anonKey, body, &out); err != nil {
		return identityprovider.SignUpResult{}, err
	}
	if out.AccessToken != "" {
		sess := out.sessionBody.toPort()
		return identityprovider.SignUpResult{Session: &sess, User: sess.User}, nil
	}
	u := out.userBody
	if u.ID == "" {
		u = out.sessionBody.User
	}
	if u.ID == "" {
		return identityprovider.SignUpResult{}, fmt.Errorf("gotrue: signup response without user id")
	}
	// With confirmations on, an existing email gets a 200 with a fake user and no identities.
	return identityprovider.SignUpResult{User: u.toPort(), AlreadyRegistered: u.obfuscated()}, nil
}

func (c *Client) Verify(ctx context.Context, in identityprovider.VerifyInput) (identityprovider.Session, error) {
	body := map[string]string{"type": in.Type}
	if in.TokenHash != "" {
		body["token_hash"] = in.TokenHash
	} else {
		body["email"] = in.Email
		body["token"] = in.Token
	}
	var out sessionBody
	if err := c.do(ctx, http.MethodPost, "/verify", c.anonKey, body, &out); err != nil {
		return identityprovider.Session{}, err
	}
	return out.toPort(), nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/resend", c.anonKey,
		map[string]string{"type": "signup", "email": email}, nil)
}

func (c *Client) AdminUpdateUser(ctx context.Context, id domain.UserID, u identityprovider.UserUpdate) (identityprovider.User, error) {
	if c.serviceKey == "" {
		return identityprovider.User{}, fmt.Errorf("gotrue: admin update requires a service key")
	}
	body := map[string]any{}
	if u.Password != nil {
		body["password"] = *u.Password
	}
	if u.EmailConfirm != nil {
		body["email_confirm"] = *u.EmailConfirm
	}
	if len(u.Metadata) > 0 {
		body["user_metadata"] = u.Metadata
	}
	var out userBody
	path := "/admin/users/" + url.PathEscape(string(id))
	if err := c.do(ctx, http.MethodPut, path, c.serviceKey, body, &out); err != nil {
		return identityprovider.User{}, err
	}
	return out.toPort(), nil
}

// do sends a JSON request. Non-2xx responses come back as *identityprovider.Error;
// every other failure is a transport error.
func (c *Client) do(ctx context.Context, method, path, key string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("apikey", key)
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue %s %s: %w", method, strings.SplitN(path, "?", 2)[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("gotrue read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}
	return nil
}

// errorBody accepts the error shapes GoTrue has used across versions.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(status int, raw []byte) *identityprovider.Error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	pe := &identityprovider.Error{Status: status, Code: eb.ErrorCode}
	for _, m := range []string{eb.Msg, eb.Message, eb.ErrorDescription, eb.Error} {
		if m != "" {
			pe.Message = m
			break
		}
	}
	if pe.Code == "" && eb.ErrorDescription != "" {
		pe.Code = eb.Error
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}
