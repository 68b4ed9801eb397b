package capture

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ImageFrame adapts a decoded image to FrameSource.
type ImageFrame struct {
	Image image.Image
}

func (f ImageFrame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

func (f ImageFrame) DrawInto(dst draw.Image, r image.Rectangle) {
	draw.Draw(dst, dst.Bounds(), f.Image, r.Min, draw.Src)
}

// FileFrame is a frame decoded from a file on disk.
type FileFrame struct {
	ImageFrame
	Path   string
	Format string // "jpeg" or "png"
}

// LoadFile decodes a JPEG or PNG file into a FileFrame.
func LoadFile(path string) (FileFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileFrame{}, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return FileFrame{}, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return FileFrame{ImageFrame: ImageFrame{Image: img}, Path: path, Format: format}, nil
}
