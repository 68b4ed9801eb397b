// Package capture turns a camera frame into the two square JPEG renditions
// stored for every photo.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/nfnt/resize"

	"github.com/msomdec/color-hunt/internal/domain"
)

// FrameSource is a ready video source. DrawInto copies the source region r
// into dst, whose bounds start at the origin and match r's size.
type FrameSource interface {
	Bounds() image.Rectangle
	DrawInto(dst draw.Image, r image.Rectangle)
}

// Output holds both encoded renditions of a capture.
type Output struct {
	Full      []byte
	Thumbnail []byte
}

// Pipeline holds the output sizes and encode qualities.
type Pipeline struct {
	FullSize     int
	ThumbSize    int
	FullQuality  int
	ThumbQuality int
}

// DefaultPipeline produces 800x800 photos and 200x200 thumbnails.
func DefaultPipeline() Pipeline {
	return Pipeline{
		FullSize:     800,
		ThumbSize:    200,
		FullQuality:  85,
		ThumbQuality: 80,
	}
}

// CropRect returns the largest square centered in b.
func CropRect(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	side := min(w, h)
	x := b.Min.X + (w-side)/2
	y := b.Min.Y + (h-side)/2
	return image.Rect(x, y, x+side, y+side)
}

// Capture crops the current frame to a centered square and encodes it at
// both sizes. It has no side effects; persisting the result is up to the
// caller.
func (p Pipeline) Capture(ctx context.Context, src FrameSource) (*Output, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: frame is %dx%d", domain.ErrFrameNotReady, b.Dx(), b.Dy())
	}

	crop := CropRect(b)
	square := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	src.DrawInto(square, crop)

	full, err := p.encode(ctx, square, p.FullSize, p.FullQuality)
	if err != nil {
		return nil, fmt.Errorf("encode full image: %w", err)
	}
	thumb, err := p.encode(ctx, square, p.ThumbSize, p.ThumbQuality)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return &Output{Full: full, Thumbnail: thumb}, nil
}

func (p Pipeline) encode(ctx context.Context, square image.Image, size, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scaled := resize.Resize(uint(size), uint(size), square, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
