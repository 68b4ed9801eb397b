package service

import (
	"fmt"
	"strings"

	"github.com/msomdec/color-hunt/internal/domain"
)

// RenderProgressText renders a session's progress as plain text: a header
// line, the count, the grid of filled ("■") and empty ("□") positions laid
// out columns wide, and a hint about what to do next.
func RenderProgressText(tr *Translator, session *domain.Session, photos []domain.Photo, columns int) string {
	if session == nil {
		return ""
	}
	if columns <= 0 {
		columns = 3
	}
	p := ProgressOf(session, photos)

	var lines []string
	lines = append(lines, tr.T("progress.header", tr.ColorName(session.Color), session.Color.Hex, session.Date))
	lines = append(lines, tr.T("progress.count", p.Filled, p.Target, p.Percent))
	lines = append(lines, renderGrid(session.TargetCount, photos, columns)...)

	switch {
	case session.IsCompleted():
		lines = append(lines, tr.T("progress.done"))
	case p.CanComplete:
		lines = append(lines, tr.T("progress.full"))
	case p.Next >= 0:
		lines = append(lines, tr.T("progress.next", p.Next+1))
	}
	return strings.Join(lines, "\n")
}

func renderGrid(target int, photos []domain.Photo, columns int) []string {
	filled := make(map[int]bool, len(photos))
	for _, p := range photos {
		filled[p.Position] = true
	}

	var rows []string
	var sb strings.Builder
	for i := 0; i < target; i++ {
		if i > 0 && i%columns == 0 {
			rows = append(rows, sb.String())
			sb.Reset()
		}
		if i%columns > 0 {
			sb.WriteByte(' ')
		}
		if filled[i] {
			sb.WriteString("■")
		} else {
			sb.WriteString("□")
		}
	}
	if sb.Len() > 0 {
		rows = append(rows, sb.String())
	}
	return rows
}

// RenderHistoryText renders completed collages, newest first, one per line.
func RenderHistoryText(tr *Translator, collages []domain.CompletedCollage, hasMore bool) string {
	if len(collages) == 0 {
		return tr.T("history.empty")
	}
	var lines []string
	for _, c := range collages {
		name := c.Color
		if color, ok := domain.ColorByName(c.Color); ok {
			name = tr.ColorName(color)
		}
		lines = append(lines, fmt.Sprintf("%s  %-12s %s", c.Date, name, c.ID))
	}
	if hasMore {
		lines = append(lines, tr.T("history.more"))
	}
	return strings.Join(lines, "\n")
}
