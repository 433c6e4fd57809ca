package convert

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestJPEG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 40, A: 255})
		}
	}
	path := filepath.Join(dir, "scan.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func TestNormalizeImage(t *testing.T) {
	dir := t.TempDir()
	jpgPath := writeTestJPEG(t, dir)

	c := NewConverter(Options{TempRoot: dir})
	defer c.Cleanup()

	result, err := c.Convert(context.Background(), jpgPath, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, "jpeg", result.Format)
	assert.False(t, result.Placeholder)
	require.Len(t, result.Images, 1)
	assert.Equal(t, 1, result.Images[0].PageNumber)
	assert.Equal(t, 40, result.Images[0].Width)
	assert.Equal(t, 30, result.Images[0].Height)

	// Output must be a decodable PNG
	f, err := os.Open(result.Images[0].ImagePath)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}

func TestConvert_MissingFile(t *testing.T) {
	c := NewConverter(Options{TempRoot: t.TempDir()})
	defer c.Cleanup()

	_, err := c.Convert(context.Background(), "/nonexistent/file.pdf", "application/pdf")
	assert.Error(t, err)
}

func TestConvert_UnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01}, 0o644))

	c := NewConverter(Options{TempRoot: dir})
	defer c.Cleanup()

	_, err := c.Convert(context.Background(), path, "application/octet-stream")
	assert.Error(t, err)
}

func TestConvert_DocxWithoutSoffice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a real docx"), 0o644))

	// Point at a binary that does not exist to force the placeholder path
	c := NewConverter(Options{TempRoot: dir, SofficePath: filepath.Join(dir, "no-soffice")})
	defer c.Cleanup()

	result, err := c.Convert(context.Background(), path, "docx")
	require.NoError(t, err)

	assert.True(t, result.Placeholder)
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, result.Images, 1)

	// Placeholder must be a real PNG at the standard page size
	f, err := os.Open(result.Images[0].ImagePath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, placeholderWidth, img.Bounds().Dx())
}

func TestConvert_CorruptImageFallsBackToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("definitely not png bytes"), 0o644))

	c := NewConverter(Options{TempRoot: dir})
	defer c.Cleanup()

	result, err := c.Convert(context.Background(), path, "image/png")
	require.NoError(t, err)
	assert.True(t, result.Placeholder)
}

func TestConvert_TextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	var content string
	for i := 0; i < linesPerTextPage+10; i++ {
		content += "The system shall keep an audit trail of every access.\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c := NewConverter(Options{TempRoot: dir})
	defer c.Cleanup()

	result, err := c.Convert(context.Background(), path, "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "txt", result.Format)
	assert.False(t, result.Placeholder)
	require.Equal(t, 2, result.PageCount)

	f, err := os.Open(result.Images[0].ImagePath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, textPageWidth, img.Bounds().Dx())
}

func TestPaginateText_WrapsLongLines(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "requirement "
	}
	pages := paginateText(long)
	require.Len(t, pages, 1)
	assert.Greater(t, len(pages[0]), 1)
	for _, line := range pages[0] {
		assert.LessOrEqual(t, len(line), textWrapCol)
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	jpgPath := writeTestJPEG(t, dir)

	c := NewConverter(Options{TempRoot: dir})
	result, err := c.Convert(context.Background(), jpgPath, "jpg")
	require.NoError(t, err)

	tempDir := c.TempDir()
	require.NotEmpty(t, tempDir)
	_, err = os.Stat(result.Images[0].ImagePath)
	require.NoError(t, err)

	require.NoError(t, c.Cleanup())
	_, err = os.Stat(tempDir)
	assert.True(t, os.IsNotExist(err))

	// Cleanup is idempotent
	assert.NoError(t, c.Cleanup())
}

func TestNormalizeFileType(t *testing.T) {
	tests := []struct {
		fileType string
		filePath string
		want     string
	}{
		{"application/pdf", "a.pdf", "pdf"},
		{"pdf", "a.pdf", "pdf"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "a.docx", "docx"},
		{"application/msword", "a.doc", "doc"},
		{"image/png", "a.png", "png"},
		{"jpg", "a.jpg", "jpeg"},
		{"", "scan.JPG", "jpeg"},
		{"", "notes.pdf", "pdf"},
		{"text/plain", "notes.txt", "txt"},
		{"text/markdown", "readme.md", "md"},
		{"", "notes.txt", "txt"},
		{"", "README.md", "md"},
		{"application/octet-stream", "data.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeFileType(tt.fileType, tt.filePath), "type=%q path=%q", tt.fileType, tt.filePath)
	}
}
