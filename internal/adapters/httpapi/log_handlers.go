package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/devlogs/devlogs-api/internal/app/devlogs"
	"github.com/devlogs/devlogs-api/internal/domain"
)

func (s *Server) createLog(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body createLogRequest
	if !decodeBody(w, r, &body) {
		return
	}
	scope, done := s.beginIdempotent(w, r, id.UserID, "/logs", body)
	if done {
		return
	}

	in := devlogs.CreateInput{
		ProjectID: domain.ProjectID(strings.ToLower(body.ProjectID)),
		LogDate:   optionalDate(body.LogDate),
		Title:     body.Title,
		Content:   body.Content,
		Tags:      body.Tags,
	}
	if body.Visibility != nil {
		v := domain.Visibility(*body.Visibility)
		in.Visibility = &v
	}
	l, err := s.Logs.Create(r.Context(), id.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeIdempotentJSON(w, r, scope, http.StatusCreated, logFromDomain(l))
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var (
		projectID, search *string
		from, to          *openapi_types.Date
		tags              *[]string
		page, pageSize    *int
	)
	if !bindQuery(w, r, q, "project_id", &projectID) ||
		!bindQuery(w, r, q, "from", &from) ||
		!bindQuery(w, r, q, "to", &to) ||
		!bindQuery(w, r, q, "tags", &tags) ||
		!bindQuery(w, r, q, "search", &search) ||
		!bindQuery(w, r, q, "page", &page) ||
		!bindQuery(w, r, q, "page_size", &pageSize) {
		return
	}
	pid, ok := queryProjectID(w, r, projectID)
	if !ok {
		return
	}

	in := devlogs.ListInput{
		ProjectID: pid,
		From:      optionalDate(from),
		To:        optionalDate(to),
	}
	if tags != nil {
		in.Tags = *tags
	}
	if search != nil {
		in.Search = *search
	}
	if page != nil {
		in.Page = *page
		if *page == 0 {
			in.Page = -1
		}
	}
	if pageSize != nil {
		in.PageSize = *pageSize
		if *pageSize == 0 {
			in.PageSize = -1
		}
	}

	res, err := s.Logs.List(r.Context(), id.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := logListResponse{
		Items:    make([]logResponse, 0, len(res.Items)),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
		HasMore:  res.HasMore,
	}
	for _, l := range res.Items {
		out.Items = append(out.Items, logFromDomain(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) exportLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var (
		format, projectID *string
		from, to          *openapi_types.Date
	)
	if !bindQuery(w, r, q, "format", &format) ||
		!bindQuery(w, r, q, "project_id", &projectID) ||
		!bindQuery(w, r, q, "from", &from) ||
		!bindQuery(w, r, q, "to", &to) {
		return
	}
	pid, ok := queryProjectID(w, r, projectID)
	if !ok {
		return
	}
	in := devlogs.ExportInput{ProjectID: pid, From: optionalDate(from), To: optionalDate(to)}
	if format != nil {
		in.Format = devlogs.ExportFormat(*format)
	}

	out, err := s.Logs.Export(r.Context(), id.UserID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+out.Filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	lid, ok := pathUUID(w, r, "logID")
	if !ok {
		return
	}
	l, err := s.Logs.Get(r.Context(), id.UserID, domain.LogID(lid))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logFromDomain(l))
}

func (s *Server) updateLog(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	lid, ok := pathUUID(w, r, "logID")
	if !ok {
		return
	}
	var body updateLogRequest
	if !decodeBody(w, r, &body) {
		return
	}

	in := devlogs.UpdateInput{
		LogDate: optionalDate(body.LogDate),
		Title:   body.Title,
		Content: body.Content,
	}
	if body.ProjectID != nil {
		pid := domain.ProjectID(strings.ToLower(*body.ProjectID))
		in.ProjectID = &pid
	}
	if body.Tags != nil {
		in.Tags = *body.Tags
		if in.Tags == nil {
			in.Tags = []string{}
		}
	}
	if body.Visibility != nil {
		v := domain.Visibility(*body.Visibility)
		in.Visibility = &v
	}

	l, err := s.Logs.Update(r.Context(), id.UserID, domain.LogID(lid), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logFromDomain(l))
}

func (s *Server) deleteLog(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	lid, ok := pathUUID(w, r, "logID")
	if !ok {
		return
	}
	if err := s.Logs.Delete(r.Context(), id.UserID, domain.LogID(lid)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var from, to *openapi_types.Date
	if !bindQuery(w, r, q, "from", &from) || !bindQuery(w, r, q, "to", &to) {
		return
	}
	st, err := s.Logs.Dashboard(r.Context(), id.UserID, devlogs.DashboardInput{From: optionalDate(from), To: optionalDate(to)})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		LogsThisWeek:   st.LogsThisWeek,
		LogsChange:     st.LogsChange,
		ActiveProjects: st.ActiveProjects,
		HoursLogged:    st.HoursLogged,
		HoursChange:    st.HoursChange,
	})
}

// bindQuery binds an optional form-style query parameter into dest (a pointer to a pointer).
func bindQuery(w http.ResponseWriter, r *http.Request, q url.Values, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameter "+name, map[string]any{name: "is invalid"})
		return false
	}
	return true
}

func queryProjectID(w http.ResponseWriter, r *http.Request, raw *string) (*domain.ProjectID, bool) {
	if raw == nil {
		return nil, true
	}
	u, err := uuid.Parse(*raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameter project_id", map[string]any{"project_id": "must be a UUID"})
		return nil, false
	}
	pid := domain.ProjectID(u.String())
	return &pid, true
}
