package devlogs

import (
	"context"
	"math"

	"github.com/devlogs/devlogs-api/internal/app/apperr"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/clock"
)

const defaultDashboardDays = 7

// Dashboard aggregates [from, to] and compares it with the preceding period of equal length.
// to defaults to today and from to seven days before to.
func (s *Service) Dashboard(ctx context.Context, owner domain.UserID, in DashboardInput) (domain.DashboardStats, error) {
	to := clock.Today(s.clk)
	if in.To != nil {
		to = domain.DateOnly(*in.To)
	}
	from := to.AddDate(0, 0, -defaultDashboardDays)
	if in.From != nil {
		from = domain.DateOnly(*in.From)
	}
	if from.After(to) {
		return domain.DashboardStats{}, apperr.Validation("invalid period", map[string]any{"from": "must not be after to"})
	}

	cur, err := s.logs.Stats(ctx, owner, from, to)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	days := int(to.Sub(from).Hours() / 24)
	prevFrom := from.AddDate(0, 0, -days)
	prevTo := from.AddDate(0, 0, -1)
	prev, err := s.logs.Stats(ctx, owner, prevFrom, prevTo)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	hours := roundTenth(cur.HoursLogged)
	return domain.DashboardStats{
		LogsThisWeek:   cur.LogCount,
		LogsChange:     cur.LogCount - prev.LogCount,
		ActiveProjects: cur.ActiveProjects,
		HoursLogged:    hours,
		HoursChange:    roundTenth(hours - roundTenth(prev.HoursLogged)),
	}, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
