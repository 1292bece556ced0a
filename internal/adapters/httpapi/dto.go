package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/devlogs/devlogs-api/internal/app/auth"
	"github.com/devlogs/devlogs-api/internal/domain"
)

// Auth

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"max=100"`
}

type verifyRequest struct {
	Type      string `json:"type"`
	Email     string `json:"email" validate:"omitempty,email"`
	Token     string `json:"token"`
	TokenHash string `json:"token_hash"`
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type updateMeRequest struct {
	Name        *string `json:"name,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         userResponse `json:"user"`
}

type signupResponse struct {
	sessionResponse
	EmailConfirmationRequired bool `json:"email_confirmation_required"`
}

type profileResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           *string `json:"name"`
	DisplayName    *string `json:"display_name"`
	EmailConfirmed bool    `json:"email_confirmed"`
}

func sessionFromApp(s auth.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		RefreshToken: s.RefreshToken,
		User: userResponse{
			ID:    string(s.User.ID),
			Email: s.User.Email,
			Name:  s.User.Name,
		},
	}
}

func profileFromDomain(p domain.Profile) profileResponse {
	return profileResponse{
		ID:             string(p.UserID),
		Email:          p.Email,
		Name:           p.Name,
		DisplayName:    p.DisplayName,
		EmailConfirmed: p.EmailConfirmed,
	}
}

// Projects

type createProjectRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	Color       *string `json:"color" validate:"omitempty,hexcolor,len=7"`
}

type updateProjectRequest struct {
	Name        *string                   `json:"name,omitempty" validate:"omitempty,max=255"`
	Description nullable.Nullable[string] `json:"description,omitempty"`
	Color       *string                   `json:"color,omitempty" validate:"omitempty,hexcolor,len=7"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Color       string    `json:"color"`
	LogCount    int       `json:"log_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type projectListResponse struct {
	Items []projectResponse `json:"items"`
	Total int               `json:"total"`
}

func projectFromDomain(p domain.Project) projectResponse {
	return projectResponse{
		ID:          string(p.ID),
		UserID:      string(p.UserID),
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		LogCount:    p.LogCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Logs

type createLogRequest struct {
	ProjectID  string              `json:"project_id" validate:"required,uuid"`
	LogDate    *openapi_types.Date `json:"log_date,omitempty"`
	Title      string              `json:"title" validate:"required,max=255"`
	Content    map[string]any      `json:"content_json"`
	Tags       []string            `json:"tags"`
	Visibility *string             `json:"visibility,omitempty" validate:"omitempty,oneof=private team public"`
}

type updateLogRequest struct {
	ProjectID  *string             `json:"project_id,omitempty" validate:"omitempty,uuid"`
	LogDate    *openapi_types.Date `json:"log_date,omitempty"`
	Title      *string             `json:"title,omitempty" validate:"omitempty,max=255"`
	Content    map[string]any      `json:"content_json,omitempty"`
	Tags       *[]string           `json:"tags,omitempty"`
	Visibility *string             `json:"visibility,omitempty" validate:"omitempty,oneof=private team public"`
}

type logResponse struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	ProjectID    string             `json:"project_id"`
	LogDate      openapi_types.Date `json:"log_date"`
	Title        string             `json:"title"`
	Content      map[string]any     `json:"content_json"`
	Tags         []string           `json:"tags"`
	Visibility   string             `json:"visibility"`
	AISummary    *string            `json:"ai_summary"`
	ProjectName  *string            `json:"project_name"`
	ProjectColor *string            `json:"project_color"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type logListResponse struct {
	Items    []logResponse `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	HasMore  bool          `json:"has_more"`
}

func logFromDomain(l domain.DevLog) logResponse {
	content := l.Content
	if content == nil {
		content = map[string]any{}
	}
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return logResponse{
		ID:           string(l.ID),
		UserID:       string(l.UserID),
		ProjectID:    string(l.ProjectID),
		LogDate:      openapi_types.Date{Time: l.LogDate},
		Title:        l.Title,
		Content:      content,
		Tags:         tags,
		Visibility:   string(l.Visibility),
		AISummary:    l.AISummary,
		ProjectName:  l.ProjectName,
		ProjectColor: l.ProjectColor,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

// Stats

type dashboardResponse struct {
	LogsThisWeek   int     `json:"logs_this_week"`
	LogsChange     int     `json:"logs_change"`
	ActiveProjects int     `json:"active_projects"`
	HoursLogged    float64 `json:"hours_logged"`
	HoursChange    float64 `json:"hours_change"`
}

func optionalDate(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
