package shot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

// ErrEmpty is returned when the browser produced no image data
var ErrEmpty = errors.New("shot: empty screenshot")

// Result describes what ended up on disk
type Result struct {
	Path      string
	Size      int64
	Width     int
	Height    int
	Thumbnail string // empty until WriteThumbnail succeeds

	img image.Image
}

// Write validates data as a PNG and stores it at path, replacing any
// previous file only once the new one is complete
func Write(path string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("shot: decode png: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrEmpty
	}

	size, err := WriteFile(path, data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:   path,
		Size:   size,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		img:    img,
	}, nil
}

// WriteThumbnail stores a copy of the screenshot scaled down to width,
// keeping the aspect ratio. Images narrower than width are not upscaled.
func (r *Result) WriteThumbnail(path string, width uint) error {
	if r.img == nil {
		return ErrEmpty
	}
	img := r.img
	if width == 0 {
		width = 400
	}
	if int(width) > img.Bounds().Dx() {
		width = uint(img.Bounds().Dx())
	}

	// Height 0 lets resize keep the aspect ratio
	scaled := resize.Resize(width, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return fmt.Errorf("shot: encode thumbnail: %w", err)
	}
	if _, err := WriteFile(path, buf.Bytes()); err != nil {
		return err
	}
	r.Thumbnail = path
	return nil
}

// WriteFile writes through a temp file in the destination directory so a
// failure never leaves a truncated file at path. The directory must exist.
func WriteFile(path string, data []byte) (int64, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".billshot-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("shot: create temp in %s: %w", dir, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, fmt.Errorf("shot: write %s: %w", tmp, err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return 0, fmt.Errorf("shot: chmod %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("shot: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("shot: rename to %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
