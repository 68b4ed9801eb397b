// Package collage arranges a session's photos into one grid image.
package collage

import (
	"fmt"
	"image"
	"image/color"
)

// Layout describes the collage geometry. All lengths are in pixels.
type Layout struct {
	Columns      int
	Rows         int
	CellSize     int
	Gap          int
	CornerRadius int
	// Inset shrinks the photo inside its cell so the cell background shows
	// as a thin frame.
	Inset       int
	SideMargin  int
	TopMargin   int
	CaptionBand int

	Background     color.Color
	CellBackground color.Color
	TextColor      color.Color
}

// DefaultLayout returns the standard layout for a columns x rows grid.
func DefaultLayout(columns, rows int) Layout {
	return Layout{
		Columns:        columns,
		Rows:           rows,
		CellSize:       300,
		Gap:            12,
		CornerRadius:   16,
		Inset:          6,
		SideMargin:     24,
		TopMargin:      24,
		CaptionBand:    96,
		Background:     color.RGBA{0xFA, 0xF7, 0xF2, 0xFF},
		CellBackground: color.RGBA{0xEC, 0xE8, 0xE1, 0xFF},
		TextColor:      color.RGBA{0x2D, 0x2D, 0x2D, 0xFF},
	}
}

// Validate rejects layouts that cannot be drawn.
func (l Layout) Validate() error {
	switch {
	case l.Columns <= 0 || l.Rows <= 0:
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", l.Columns, l.Rows)
	case l.CellSize <= 0:
		return fmt.Errorf("cell size must be positive, got %d", l.CellSize)
	case l.Gap < 0 || l.SideMargin < 0 || l.TopMargin < 0 || l.CaptionBand < 0:
		return fmt.Errorf("gap and margins must not be negative")
	case l.Inset < 0 || 2*l.Inset >= l.CellSize:
		return fmt.Errorf("inset %d does not fit cell size %d", l.Inset, l.CellSize)
	case l.CornerRadius < 0:
		return fmt.Errorf("corner radius must not be negative")
	}
	return nil
}

// Capacity is the number of cells in the grid.
func (l Layout) Capacity() int {
	return l.Columns * l.Rows
}

// CanvasSize returns the full collage dimensions.
func (l Layout) CanvasSize() (width, height int) {
	width = l.Columns*l.CellSize + (l.Columns+1)*l.Gap + 2*l.SideMargin
	height = l.Rows*l.CellSize + (l.Rows-1)*l.Gap + l.TopMargin + l.CaptionBand
	return width, height
}

// CellRect returns the bounds of cell i. Cells are row-major from the
// top-left, so position 0 is the top-left cell.
func (l Layout) CellRect(i int) image.Rectangle {
	row, col := i/l.Columns, i%l.Columns
	x := l.SideMargin + l.Gap + col*(l.CellSize+l.Gap)
	y := l.TopMargin + row*(l.CellSize+l.Gap)
	return image.Rect(x, y, x+l.CellSize, y+l.CellSize)
}

// PhotoRect returns the area inside cell i that the photo fills.
func (l Layout) PhotoRect(i int) image.Rectangle {
	return l.CellRect(i).Inset(l.Inset)
}

// CaptionRect returns the band below the grid.
func (l Layout) CaptionRect() image.Rectangle {
	w, h := l.CanvasSize()
	return image.Rect(0, h-l.CaptionBand, w, h)
}
