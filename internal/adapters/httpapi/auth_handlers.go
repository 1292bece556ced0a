package httpapi

import (
	"net/http"

	"github.com/devlogs/devlogs-api/internal/app/auth"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.Auth.Login(r.Context(), auth.LoginInput{Email: body.Email, Password: body.Password})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFromApp(sess))
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.Auth.Signup(r.Context(), auth.SignupInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{
		sessionResponse:           sessionFromApp(res.Session),
		EmailConfirmationRequired: res.EmailConfirmationRequired,
	})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.Auth.VerifyEmail(r.Context(), auth.VerifyEmailInput{
		Type:      body.Type,
		Email:     body.Email,
		Token:     body.Token,
		TokenHash: body.TokenHash,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFromApp(sess))
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var body resendRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.Auth.ResendVerification(r.Context(), body.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent"})
}

func (s *Server) setPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body setPasswordRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.Auth.SetPassword(r.Context(), id, body.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password set successfully"})
}

// logout is a no-op: sessions are stateless and the client discards its token.
func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	p, err := s.Auth.Me(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromDomain(p))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body updateMeRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := s.Auth.UpdateProfile(r.Context(), id, auth.UpdateProfileInput{Name: body.Name, DisplayName: body.DisplayName})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromDomain(p))
}
