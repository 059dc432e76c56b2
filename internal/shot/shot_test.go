package shot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.png")
	data := testPNG(t, 64, 32, color.White)

	res, err := Write(path, data)
	require.NoError(t, err)

	assert.Equal(t, path, res.Path)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 32, res.Height)
	assert.Empty(t, res.Thumbnail)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.png")
	first := testPNG(t, 10, 10, color.Black)
	second := testPNG(t, 20, 20, color.White)

	_, err := Write(path, first)
	require.NoError(t, err)
	_, err = Write(path, second)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteRejectsBadData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bill.png")
	previous := testPNG(t, 8, 8, color.Black)
	require.NoError(t, os.WriteFile(path, previous, 0o644))

	_, err := Write(path, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Write(path, []byte("not a png"))
	assert.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, previous, got, "a rejected screenshot must not touch the previous file")
}

func TestWriteMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "bill.png")
	_, err := Write(path, testPNG(t, 4, 4, color.White))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(statErr), "the output directory is never created")
}

func TestWriteThumbnail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bill.png")
	thumb := filepath.Join(dir, "bill_thumb.png")

	res, err := Write(path, testPNG(t, 200, 100, color.White))
	require.NoError(t, err)
	require.NoError(t, res.WriteThumbnail(thumb, 50))
	assert.Equal(t, thumb, res.Thumbnail)

	f, err := os.Open(thumb)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestWriteThumbnailNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	thumb := filepath.Join(dir, "thumb.png")

	res, err := Write(filepath.Join(dir, "bill.png"), testPNG(t, 30, 30, color.White))
	require.NoError(t, err)
	require.NoError(t, res.WriteThumbnail(thumb, 400))

	f, err := os.Open(thumb)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)
}

func TestWriteThumbnailFailureKeepsScreenshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bill.png")
	data := testPNG(t, 20, 20, color.White)

	res, err := Write(path, data)
	require.NoError(t, err)

	err = res.WriteThumbnail(filepath.Join(dir, "missing", "thumb.png"), 10)
	require.Error(t, err)
	assert.Empty(t, res.Thumbnail)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bill.md")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	size, err := WriteFile(path, []byte("# Bill\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Bill\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
