package httpapi

import (
	"net/http"

	"github.com/oapi-codegen/nullable"

	"github.com/devlogs/devlogs-api/internal/app/optional"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/domain"
)

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body createProjectRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := s.Projects.Create(r.Context(), id.UserID, projects.CreateInput{
		Name:        body.Name,
		Description: body.Description,
		Color:       body.Color,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectFromDomain(p))
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	res, err := s.Projects.List(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := projectListResponse{Items: make([]projectResponse, 0, len(res.Items)), Total: res.Total}
	for _, p := range res.Items {
		out.Items = append(out.Items, projectFromDomain(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	pid, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	p, err := s.Projects.Get(r.Context(), id.UserID, domain.ProjectID(pid))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectFromDomain(p))
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	pid, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	var body updateProjectRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := s.Projects.Update(r.Context(), id.UserID, domain.ProjectID(pid), projects.UpdateInput{
		Name:        body.Name,
		Description: optionalFromNullable(body.Description),
		Color:       body.Color,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectFromDomain(p))
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	pid, ok := pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	if err := s.Projects.Delete(r.Context(), id.UserID, domain.ProjectID(pid)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func optionalFromNullable[T any](n nullable.Nullable[T]) optional.Value[T] {
	if !n.IsSpecified() {
		return optional.Unspecified[T]()
	}
	if n.IsNull() {
		return optional.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return optional.Unspecified[T]()
	}
	return optional.Some(v)
}
