// Package contracttest holds behaviour tests shared by every repository implementation.
package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devlogs/devlogs-api/internal/domain"
	idempotencyport "github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
	logrepoport "github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
	projectrepoport "github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

type CleanupFunc = func()

type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// Stores is a project store and the log store wired to it.
type Stores struct {
	Projects projectrepoport.Repository
	Logs     logrepoport.Repository
}

type StoresFactory func(t *testing.T) (Stores, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		User:     domain.UserID(uuid.NewString()),
		Method:   "POST",
		Route:    "/logs",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"a"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":"a"}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":"b"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":"b"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// A different body hash is a different request.
	other := fp
	other.BodyHash = "different"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("expected miss for different body hash, got ok=%v err=%v", ok, err)
	}
}

func RunProjectAndLogRepos(t *testing.T, newStores StoresFactory) {
	t.Helper()
	ctx := context.Background()

	s, cleanup := newStores(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	owner := domain.UserID(uuid.NewString())
	stranger := domain.UserID(uuid.NewString())
	t0 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	older := domain.Project{ID: domain.ProjectID(uuid.NewString()), UserID: owner, Name: "Older", Color: "#111111", CreatedAt: t0, UpdatedAt: t0}
	newer := domain.Project{ID: domain.ProjectID(uuid.NewString()), UserID: owner, Name: "Newer", Color: "#222222", CreatedAt: t0.Add(time.Hour), UpdatedAt: t0.Add(time.Hour)}
	for _, p := range []domain.Project{older, newer} {
		if err := s.Projects.Create(ctx, p); err != nil {
			t.Fatalf("Create project: %v", err)
		}
	}
	if err := s.Projects.Create(ctx, older); !errors.Is(err, projectrepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate Create err=%v, want ErrAlreadyExists", err)
	}

	// Ownership scoping.
	if _, err := s.Projects.Get(ctx, stranger, older.ID); !errors.Is(err, projectrepoport.ErrNotFound) {
		t.Fatalf("Get by stranger err=%v, want ErrNotFound", err)
	}

	desc := "renamed"
	older.Name = "Older renamed"
	older.Description = &desc
	if err := s.Projects.Save(ctx, older); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Projects.Get(ctx, owner, older.ID)
	if err != nil || got.Name != "Older renamed" || got.Description == nil || *got.Description != "renamed" {
		t.Fatalf("Get after Save = %+v err=%v", got, err)
	}

	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	mk := func(p domain.Project, date time.Time, created time.Time, title string, tags []string, content map[string]any) domain.DevLog {
		return domain.DevLog{
			ID:         domain.LogID(uuid.NewString()),
			UserID:     owner,
			ProjectID:  p.ID,
			LogDate:    date,
			Title:      title,
			Content:    content,
			Tags:       tags,
			Visibility: domain.VisibilityPrivate,
			CreatedAt:  created,
			UpdatedAt:  created,
		}
	}
	l1 := mk(older, day(5), t0, "Fix login bug", []string{"go", "auth"}, map[string]any{"summary": "JWT expiry", "time_spent_hours": 2.5})
	l2 := mk(older, day(7), t0, "Write docs", []string{"docs"}, map[string]any{"summary": "README"})
	l3 := mk(newer, day(7), t0.Add(time.Minute), "Refactor router", []string{"go"}, map[string]any{"time_spent_hours": 1.0})
	for _, l := range []domain.DevLog{l1, l2, l3} {
		if err := s.Logs.Create(ctx, l); err != nil {
			t.Fatalf("Create log: %v", err)
		}
	}

	// Ordering: log_date desc, then created_at desc.
	all, total, err := s.Logs.List(ctx, owner, logrepoport.Filter{}, logrepoport.Page{Number: 1, Size: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(all) != 3 || all[0].ID != l3.ID || all[1].ID != l2.ID || all[2].ID != l1.ID {
		t.Fatalf("List total=%d order=%v", total, ids(all))
	}
	if all[0].ProjectName == nil || *all[0].ProjectName != "Newer" || all[0].ProjectColor == nil || *all[0].ProjectColor != "#222222" {
		t.Fatalf("expected joined project fields, got %+v", all[0])
	}

	// Pagination keeps the total.
	page, total, err := s.Logs.List(ctx, owner, logrepoport.Filter{}, logrepoport.Page{Number: 2, Size: 2})
	if err != nil || total != 3 || len(page) != 1 || page[0].ID != l1.ID {
		t.Fatalf("page 2: total=%d ids=%v err=%v", total, ids(page), err)
	}

	// Filters.
	pid := older.ID
	from, to := day(6), day(7)
	cases := []struct {
		name string
		f    logrepoport.Filter
		want []domain.LogID
	}{
		{"project", logrepoport.Filter{ProjectID: &pid}, []domain.LogID{l2.ID, l1.ID}},
		{"date range", logrepoport.Filter{From: &from, To: &to}, []domain.LogID{l3.ID, l2.ID}},
		{"tags any", logrepoport.Filter{Tags: []string{"auth", "docs"}}, []domain.LogID{l2.ID, l1.ID}},
		{"search title", logrepoport.Filter{Search: "ROUTER"}, []domain.LogID{l3.ID}},
		{"search summary", logrepoport.Filter{Search: "jwt"}, []domain.LogID{l1.ID}},
	}
	for _, tc := range cases {
		got, n, err := s.Logs.List(ctx, owner, tc.f, logrepoport.Page{Number: 1, Size: 20})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if n != len(tc.want) || !equalIDs(ids(got), tc.want) {
			t.Fatalf("%s: got %v (total %d), want %v", tc.name, ids(got), n, tc.want)
		}
	}

	// Strangers see nothing.
	if _, err := s.Logs.Get(ctx, stranger, l1.ID); !errors.Is(err, logrepoport.ErrNotFound) {
		t.Fatalf("Get log by stranger err=%v", err)
	}
	if got, n, err := s.Logs.List(ctx, stranger, logrepoport.Filter{}, logrepoport.Page{Number: 1, Size: 20}); err != nil || n != 0 || len(got) != 0 {
		t.Fatalf("stranger list n=%d err=%v", n, err)
	}

	// Update round trip.
	l2.Title = "Write better docs"
	l2.Tags = []string{"docs", "writing"}
	if err := s.Logs.Save(ctx, l2); err != nil {
		t.Fatalf("Save log: %v", err)
	}
	gotLog, err := s.Logs.Get(ctx, owner, l2.ID)
	if err != nil || gotLog.Title != "Write better docs" || len(gotLog.Tags) != 2 {
		t.Fatalf("Get log after Save = %+v err=%v", gotLog, err)
	}

	// Stats over an inclusive window.
	st, err := s.Logs.Stats(ctx, owner, day(5), day(7))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.LogCount != 3 || st.ActiveProjects != 2 || st.HoursLogged != 3.5 {
		t.Fatalf("Stats = %+v", st)
	}

	// Log counts.
	ps, err := s.Projects.ListWithLogCount(ctx, owner)
	if err != nil {
		t.Fatalf("ListWithLogCount: %v", err)
	}
	if len(ps) != 2 || ps[0].ID != newer.ID || ps[0].LogCount != 1 || ps[1].LogCount != 2 {
		t.Fatalf("ListWithLogCount = %+v", ps)
	}

	// Delete one log, then cascade the rest with the project.
	if err := s.Logs.Delete(ctx, owner, l3.ID); err != nil {
		t.Fatalf("Delete log: %v", err)
	}
	if err := s.Logs.Delete(ctx, owner, l3.ID); !errors.Is(err, logrepoport.ErrNotFound) {
		t.Fatalf("second Delete err=%v", err)
	}
	if err := s.Projects.Delete(ctx, stranger, older.ID); !errors.Is(err, projectrepoport.ErrNotFound) {
		t.Fatalf("Delete by stranger err=%v", err)
	}
	if err := s.Projects.Delete(ctx, owner, older.ID); err != nil {
		t.Fatalf("Delete project: %v", err)
	}
	if _, err := s.Logs.Get(ctx, owner, l1.ID); !errors.Is(err, logrepoport.ErrNotFound) {
		t.Fatalf("expected cascaded delete, err=%v", err)
	}
}

func ids(ls []domain.DevLog) []domain.LogID {
	out := make([]domain.LogID, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func equalIDs(a, b []domain.LogID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
