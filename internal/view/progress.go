package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Cell is one grid position. An empty ThumbnailURL renders a blank slot.
type Cell struct {
	Position     int
	ThumbnailURL string
}

// Grid is the progress of a hunt session as shown to the user.
type Grid struct {
	SessionID   string
	ColorName   string
	Hex         string
	Columns     int
	Filled      int
	Target      int
	Percent     int
	CanComplete bool
	Completed   bool
	Cells       []Cell
}

// ProgressGrid renders the progress bar and the photo grid of a session.
func ProgressGrid(g Grid) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		columns := g.Columns
		if columns <= 0 {
			columns = 3
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, `<div id="progress-%s" class="hunt-progress" data-filled="%d" data-target="%d">`,
			templ.EscapeString(g.SessionID), g.Filled, g.Target)
		fmt.Fprintf(&sb, `<p class="hunt-color"><span class="swatch" style="background:%s"></span>%s</p>`,
			templ.EscapeString(g.Hex), templ.EscapeString(g.ColorName))
		fmt.Fprintf(&sb, `<progress max="%d" value="%d">%d%%</progress>`, g.Target, g.Filled, g.Percent)
		fmt.Fprintf(&sb, `<div class="hunt-grid" style="grid-template-columns:repeat(%d,1fr)">`, columns)
		for _, c := range g.Cells {
			if c.ThumbnailURL == "" {
				fmt.Fprintf(&sb, `<div class="cell empty" data-position="%d"></div>`, c.Position)
				continue
			}
			fmt.Fprintf(&sb, `<div class="cell" data-position="%d"><img src="%s" alt="photo %d"></div>`,
				c.Position, templ.EscapeString(c.ThumbnailURL), c.Position+1)
		}
		sb.WriteString(`</div>`)
		switch {
		case g.Completed:
			sb.WriteString(`<p class="hunt-status">completed</p>`)
		case g.CanComplete:
			sb.WriteString(`<p class="hunt-status">ready</p>`)
		}
		sb.WriteString(`</div>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
