package collage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"sync"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Surface is the drawing target of the compositor.
type Surface interface {
	Bounds() image.Rectangle
	Fill(c color.Color)
	RoundedRect(r image.Rectangle, radius int, c color.Color)
	// DrawImage scales img to fill r exactly and clips it to a rounded rect.
	DrawImage(img image.Image, r image.Rectangle, radius int)
	// Text draws s horizontally centered on centerX with its baseline at baselineY.
	Text(s string, centerX, baselineY int, size float64, c color.Color) error
	Encode(w io.Writer, quality int) error
}

// RasterSurface draws into an in-memory RGBA image.
type RasterSurface struct {
	img *image.RGBA
}

// NewRasterSurface allocates a w x h surface.
func NewRasterSurface(w, h int) *RasterSurface {
	return &RasterSurface{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Image returns the underlying raster.
func (s *RasterSurface) Image() *image.RGBA {
	return s.img
}

func (s *RasterSurface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

func (s *RasterSurface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func (s *RasterSurface) RoundedRect(r image.Rectangle, radius int, c color.Color) {
	mask := roundedMask(r.Dx(), r.Dy(), radius)
	draw.DrawMask(s.img, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func (s *RasterSurface) DrawImage(img image.Image, r image.Rectangle, radius int) {
	scaled := img
	if b := img.Bounds(); b.Dx() != r.Dx() || b.Dy() != r.Dy() {
		scaled = resize.Resize(uint(r.Dx()), uint(r.Dy()), img, resize.Lanczos3)
	}
	mask := roundedMask(r.Dx(), r.Dy(), radius)
	draw.DrawMask(s.img, r, scaled, scaled.Bounds().Min, mask, image.Point{}, draw.Over)
}

func (s *RasterSurface) Text(str string, centerX, baselineY int, size float64, c color.Color) error {
	face, err := faceFor(size)
	if err != nil {
		return err
	}
	defer face.Close()
	d := &font.Drawer{Dst: s.img, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(str).Round()
	d.Dot = fixed.P(centerX-width/2, baselineY)
	d.DrawString(str)
	return nil
}

func (s *RasterSurface) Encode(w io.Writer, quality int) error {
	return jpeg.Encode(w, s.img, &jpeg.Options{Quality: quality})
}

// roundedMask is opaque inside a w x h rounded rectangle and transparent
// outside it. Pixels are tested at their centers.
func roundedMask(w, h, radius int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	radius = min(radius, w/2, h/2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if insideRounded(x, y, w, h, radius) {
				mask.Pix[y*mask.Stride+x] = 0xFF
			}
		}
	}
	return mask
}

func insideRounded(x, y, w, h, radius int) bool {
	var cx, cy int
	switch {
	case x < radius && y < radius:
		cx, cy = radius, radius
	case x >= w-radius && y < radius:
		cx, cy = w-radius, radius
	case x < radius && y >= h-radius:
		cx, cy = radius, h-radius
	case x >= w-radius && y >= h-radius:
		cx, cy = w-radius, h-radius
	default:
		return true
	}
	dx := float64(x) + 0.5 - float64(cx)
	dy := float64(y) + 0.5 - float64(cy)
	r := float64(radius)
	return dx*dx+dy*dy <= r*r
}

var (
	fontOnce    sync.Once
	captionFont *opentype.Font
	fontErr     error
)

// faceFor builds a face per call: faces keep glyph buffers and are not safe
// for concurrent use, the parsed font is.
func faceFor(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		captionFont, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("parse caption font: %w", fontErr)
	}
	face, err := opentype.NewFace(captionFont, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("caption face %.0fpt: %w", size, err)
	}
	return face, nil
}
