package devlogs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devlogs/devlogs-api/internal/app/apperr"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
)

type exportEntry struct {
	ID      domain.LogID   `json:"id"`
	Date    string         `json:"date"`
	Title   string         `json:"title"`
	Project *string        `json:"project"`
	Content map[string]any `json:"content"`
	Tags    []string       `json:"tags"`
}

// Export renders up to 1000 matching entries as JSON or Markdown, newest first.
func (s *Service) Export(ctx context.Context, owner domain.UserID, in ExportInput) (Export, error) {
	format := in.Format
	if format == "" {
		format = ExportJSON
	}
	if format != ExportJSON && format != ExportMarkdown {
		return Export{}, apperr.Validation("invalid format", map[string]any{"format": "must be json or md"})
	}

	f := logrepo.Filter{ProjectID: in.ProjectID, From: in.From, To: in.To}
	items, _, err := s.logs.List(ctx, owner, f, logrepo.Page{Number: 1, Size: exportLimit})
	if err != nil {
		return Export{}, err
	}

	out := Export{Filename: "devlogs_export." + string(format)}
	switch format {
	case ExportMarkdown:
		out.ContentType = "text/markdown"
		out.Body = []byte(renderMarkdown(items))
	default:
		out.ContentType = "application/json"
		out.Body, err = renderJSON(items)
		if err != nil {
			return Export{}, err
		}
	}
	return out, nil
}

func renderJSON(items []domain.DevLog) ([]byte, error) {
	entries := make([]exportEntry, 0, len(items))
	for _, l := range items {
		tags := l.Tags
		if tags == nil {
			tags = []string{}
		}
		entries = append(entries, exportEntry{
			ID:      l.ID,
			Date:    dateString(l.LogDate),
			Title:   l.Title,
			Project: l.ProjectName,
			Content: l.Content,
			Tags:    tags,
		})
	}
	return json.MarshalIndent(entries, "", "  ")
}

// renderMarkdown groups entries under one heading per calendar date.
func renderMarkdown(items []domain.DevLog) string {
	lines := []string{"# Developer Logs Export\n"}
	current := ""
	for _, l := range items {
		if day := dateString(l.LogDate); day != current {
			current = day
			lines = append(lines, fmt.Sprintf("\n## %s\n", l.LogDate.Format("January 02, 2006")))
		}

		lines = append(lines, "### "+l.Title)
		project := "N/A"
		if l.ProjectName != nil {
			project = *l.ProjectName
		}
		lines = append(lines, "**Project:** "+project)

		if summary := l.Summary(); summary != "" {
			lines = append(lines, "\n"+summary+"\n")
		}
		if tasks := l.TasksCompleted(); len(tasks) > 0 {
			lines = append(lines, "**Tasks Completed:**")
			for _, task := range tasks {
				lines = append(lines, "- "+task)
			}
		}
		if len(l.Tags) > 0 {
			lines = append(lines, "\n*Tags: "+strings.Join(l.Tags, ", ")+"*\n")
		}
		lines = append(lines, "---\n")
	}
	return strings.Join(lines, "\n")
}
