package projects_test

import (
	"context"
	"errors"
	"testing"
	"time"

	memlogrepo "github.com/devlogs/devlogs-api/internal/adapters/memory/logrepo"
	memprojectrepo "github.com/devlogs/devlogs-api/internal/adapters/memory/projectrepo"
	"github.com/devlogs/devlogs-api/internal/app/apperr"
	"github.com/devlogs/devlogs-api/internal/app/optional"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/clock"
)

type fixture struct {
	svc   *projects.Service
	repo  *memprojectrepo.Repo
	logs  *memlogrepo.Repo
	clock *clock.ManualClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memprojectrepo.NewRepo()
	logs := memlogrepo.NewRepo(repo)
	repo.AttachLogs(logs)
	clk := clock.NewManualClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))

	svc := projects.NewService(repo, clk)
	n := 0
	svc.SetNewProjectIDForTest(func() domain.ProjectID {
		n++
		return domain.ProjectID([]string{"p1", "p2", "p3"}[n-1])
	})
	return fixture{svc: svc, repo: repo, logs: logs, clock: clk}
}

func strPtr(s string) *string { return &s }

func TestService_Create_NormalizesAndDefaultsColor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	p, err := f.svc.Create(context.Background(), "u1", projects.CreateInput{Name: "  Dev   Logs  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != "p1" || p.Name != "Dev Logs" || p.Color != domain.DefaultProjectColor {
		t.Fatalf("project=%+v", p)
	}
	if !p.CreatedAt.Equal(f.clock.Now()) {
		t.Fatalf("createdAt=%v", p.CreatedAt)
	}
	if p.LogCount != 0 {
		t.Fatalf("logCount=%d", p.LogCount)
	}
}

func TestService_Create_Validation(t *testing.T) {
	t.Parallel()

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name  string
		in    projects.CreateInput
		field string
	}{
		{name: "blank name", in: projects.CreateInput{Name: "   "}, field: "name"},
		{name: "long name", in: projects.CreateInput{Name: string(long)}, field: "name"},
		{name: "short color", in: projects.CreateInput{Name: "x", Color: strPtr("#FFF")}, field: "color"},
		{name: "bad hex", in: projects.CreateInput{Name: "x", Color: strPtr("#GG0000")}, field: "color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), "u1", tt.in)
			ae, ok := apperr.As(err)
			if !ok || ae.Kind != apperr.KindValidation {
				t.Fatalf("err=%v", err)
			}
			if _, ok := ae.Details[tt.field]; !ok {
				t.Fatalf("details=%v", ae.Details)
			}
		})
	}
}

func TestService_GetAndDelete_ForeignProjectIsNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "mine"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := f.svc.Get(ctx, "u2", "p1")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("Get err=%v", err)
	}
	if ae, _ := apperr.As(err); ae.Code != "PROJECT_NOT_FOUND" {
		t.Fatalf("code=%s", ae.Code)
	}
	if err := f.svc.Delete(ctx, "u2", "p1"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("Delete err=%v", err)
	}
	if _, err := f.svc.Get(ctx, "u1", "p1"); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
}

func TestService_Update_TriStateDescription(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "api", Description: strPtr("old")}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.clock.Advance(time.Minute)

	p, err := f.svc.Update(ctx, "u1", "p1", projects.UpdateInput{Color: strPtr("#00ff00")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Description == nil || *p.Description != "old" || p.Color != "#00ff00" {
		t.Fatalf("unspecified description changed: %+v", p)
	}
	if !p.UpdatedAt.After(p.CreatedAt) {
		t.Fatalf("updatedAt not bumped: %v", p.UpdatedAt)
	}

	p, err = f.svc.Update(ctx, "u1", "p1", projects.UpdateInput{Description: optional.Null[string]()})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Description != nil {
		t.Fatalf("description=%v", *p.Description)
	}

	stored, err := f.repo.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("repo Get: %v", err)
	}
	if stored.Description != nil || stored.Color != "#00ff00" {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestService_Update_InvalidNameKeepsStoredValue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "api"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := f.svc.Update(ctx, "u1", "p1", projects.UpdateInput{Name: strPtr(" ")})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("err=%v", err)
	}
	stored, _ := f.repo.Get(ctx, "u1", "p1")
	if stored.Name != "api" {
		t.Fatalf("name=%s", stored.Name)
	}
}

func TestService_List_NewestFirstWithCounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "first"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.clock.Advance(time.Hour)
	if _, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "second"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.logs.Create(ctx, domain.DevLog{ID: "l1", UserID: "u1", ProjectID: "p1", Title: "t", Visibility: domain.VisibilityPrivate}); err != nil {
		t.Fatalf("log Create: %v", err)
	}

	res, err := f.svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 2 || res.Items[0].Name != "second" || res.Items[1].LogCount != 1 {
		t.Fatalf("list=%+v", res)
	}
}

func TestService_Create_IDCollisionIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.SetNewProjectIDForTest(func() domain.ProjectID { return "same" })
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := f.svc.Create(ctx, "u1", projects.CreateInput{Name: "b"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindConflict {
		t.Fatalf("err=%v", err)
	}
}
