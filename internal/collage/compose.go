package collage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/msomdec/color-hunt/internal/domain"
)

// Caption is the text printed under the grid. The date is supplied by the
// caller so composition never depends on the clock.
type Caption struct {
	Date  string
	Title string
}

// Compose draws photos onto surface. photos is indexed by position; a nil
// entry leaves that cell blank. Entries beyond the grid capacity are ignored.
func Compose(ctx context.Context, surface Surface, photos [][]byte, layout Layout, caption Caption) error {
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if countPhotos(photos) == 0 {
		return domain.ErrNoPhotosAvailable
	}

	surface.Fill(layout.Background)

	for i := 0; i < layout.Capacity(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		surface.RoundedRect(layout.CellRect(i), layout.CornerRadius, layout.CellBackground)

		if i >= len(photos) || photos[i] == nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(photos[i]))
		if err != nil {
			return fmt.Errorf("decode photo at position %d: %w", i, err)
		}
		surface.DrawImage(img, layout.PhotoRect(i), max(layout.CornerRadius-layout.Inset, 0))
	}

	return drawCaption(surface, layout, caption)
}

func drawCaption(surface Surface, layout Layout, caption Caption) error {
	band := layout.CaptionRect()
	if band.Dy() == 0 {
		return nil
	}
	centerX := band.Min.X + band.Dx()/2
	dateSize := float64(band.Dy()) * 0.3
	titleSize := float64(band.Dy()) * 0.22

	if caption.Date != "" {
		if err := surface.Text(caption.Date, centerX, band.Min.Y+band.Dy()*45/100, dateSize, layout.TextColor); err != nil {
			return fmt.Errorf("draw caption date: %w", err)
		}
	}
	if caption.Title != "" {
		if err := surface.Text(caption.Title, centerX, band.Min.Y+band.Dy()*78/100, titleSize, layout.TextColor); err != nil {
			return fmt.Errorf("draw caption title: %w", err)
		}
	}
	return nil
}

func countPhotos(photos [][]byte) int {
	n := 0
	for _, p := range photos {
		if p != nil {
			n++
		}
	}
	return n
}

// Compositor renders collages to JPEG bytes.
type Compositor struct {
	Layout  Layout
	Quality int
}

// NewCompositor returns a compositor using DefaultLayout with the given
// grid and cell size.
func NewCompositor(columns, rows, cellSize int) *Compositor {
	layout := DefaultLayout(columns, rows)
	layout.CellSize = cellSize
	return &Compositor{Layout: layout, Quality: 90}
}

// Raster composes into a new RasterSurface and returns its image.
func (c *Compositor) Raster(ctx context.Context, photos [][]byte, caption Caption) (*image.RGBA, error) {
	if err := c.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	w, h := c.Layout.CanvasSize()
	surface := NewRasterSurface(w, h)
	if err := Compose(ctx, surface, photos, c.Layout, caption); err != nil {
		return nil, err
	}
	return surface.Image(), nil
}

// Render composes and encodes the collage as JPEG.
func (c *Compositor) Render(ctx context.Context, photos [][]byte, caption Caption) ([]byte, error) {
	img, err := c.Raster(ctx, photos, caption)
	if err != nil {
		return nil, err
	}
	return Encode(img, c.Quality)
}

// Encode writes img as JPEG at the given quality.
func Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode collage: %w", err)
	}
	return buf.Bytes(), nil
}

// ByPosition turns stored photos into the position-indexed slice Compose
// expects, sized to the larger of capacity and the highest position.
func ByPosition(photos []domain.Photo, capacity int) [][]byte {
	size := capacity
	for _, p := range photos {
		size = max(size, p.Position+1)
	}
	out := make([][]byte, size)
	for _, p := range photos {
		if p.Position >= 0 {
			out[p.Position] = p.Image
		}
	}
	return out
}
