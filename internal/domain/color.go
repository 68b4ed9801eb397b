package domain

import "context"

// Color is a hunt target color.
type Color struct {
	Name    string // Stable identifier, e.g. "red"
	Hex     string // Display color, e.g. "#FFB3B3"
	English string // English display name
	Korean  string // Korean display name
}

// ColorAssignment is the color handed out for a hunt and the day it applies to.
type ColorAssignment struct {
	Color Color
	Date  string
}

// ColorAssigner hands out the color for a new hunt. exclude names a color
// that must not be picked; empty means no explicit exclusion.
type ColorAssigner interface {
	RequestColor(ctx context.Context, userID, exclude string) (*ColorAssignment, error)
}
