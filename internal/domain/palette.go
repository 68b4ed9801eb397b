package domain

var palette = []Color{
	{Name: "red", Hex: "#FFB3B3", English: "Soft Coral", Korean: "빨강"},
	{Name: "orange", Hex: "#FFCC99", English: "Warm Peach", Korean: "주황"},
	{Name: "yellow", Hex: "#FFF2CC", English: "Cream Yellow", Korean: "노랑"},
	{Name: "green", Hex: "#C6E2C7", English: "Sage Green", Korean: "초록"},
	{Name: "blue", Hex: "#B3D3FF", English: "Sky Blue", Korean: "파랑"},
	{Name: "indigo", Hex: "#C7B3EB", English: "Lavender", Korean: "남색"},
	{Name: "purple", Hex: "#E0B3FF", English: "Soft Violet", Korean: "보라"},
	{Name: "white", Hex: "#FEFEFE", English: "Off White", Korean: "흰색"},
	{Name: "black", Hex: "#2D2D2D", English: "Charcoal", Korean: "검정"},
}

// Palette returns the hunt colors in display order.
func Palette() []Color {
	out := make([]Color, len(palette))
	copy(out, palette)
	return out
}

// ColorByName looks up a palette color.
func ColorByName(name string) (Color, bool) {
	for _, c := range palette {
		if c.Name == name {
			return c, true
		}
	}
	return Color{}, false
}
