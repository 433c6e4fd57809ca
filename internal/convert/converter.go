// Package convert turns an arbitrary input document (PDF, DOC/DOCX, PNG/JPEG)
// into an ordered sequence of page images using go-fitz, with an external
// office conversion step for legacy formats and a diagnostic placeholder when
// the native toolchain is unavailable.
package convert

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"

	_ "image/gif"
	_ "image/jpeg"
)

const (
	defaultDPI         = 150
	defaultTargetWidth = 1500
	defaultMaxPages    = 200
)

// Converter implements document to image conversion.
type Converter struct {
	dpi         float64
	targetWidth int
	maxPages    int
	sofficePath string
	tempRoot    string
	tempDir     string
	logger      *observability.Logger
}

// Options configure a Converter.
type Options struct {
	DPI         float64
	TargetWidth int
	MaxPages    int
	SofficePath string // path to the LibreOffice binary; discovered on PATH when empty
	TempRoot    string
	Logger      *observability.Logger
}

// NewConverter creates a new converter instance.
func NewConverter(opts Options) *Converter {
	if opts.DPI <= 0 {
		opts.DPI = defaultDPI
	}
	if opts.TargetWidth <= 0 {
		opts.TargetWidth = defaultTargetWidth
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.TempRoot == "" {
		opts.TempRoot = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	return &Converter{
		dpi:         opts.DPI,
		targetWidth: opts.TargetWidth,
		maxPages:    opts.MaxPages,
		sofficePath: opts.SofficePath,
		tempRoot:    opts.TempRoot,
		logger:      opts.Logger,
	}
}

// Convert renders the document at filePath into ordered page images. It never
// fails outright on toolchain problems: when rasterization is unavailable it
// produces a single placeholder image carrying diagnostic text so the vision
// step downstream can still attempt direct analysis.
func (c *Converter) Convert(ctx context.Context, filePath, fileType string) (*domain.ConversionResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, domain.ValidationError("input file not found", err)
	}

	if err := c.ensureTempDir(); err != nil {
		return nil, err
	}

	format := normalizeFileType(fileType, filePath)
	switch format {
	case "pdf":
		return c.convertPDF(ctx, filePath, format)
	case "doc", "docx":
		pdfPath, err := c.officeToPDF(ctx, filePath)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", filePath).Msg("Office conversion unavailable, using placeholder")
			return c.placeholderResult(format, filePath)
		}
		return c.convertPDF(ctx, pdfPath, format)
	case "png", "jpg", "jpeg", "gif":
		return c.normalizeImage(filePath, format)
	case "txt", "md":
		return c.convertText(filePath, format)
	default:
		return nil, domain.ValidationError(fmt.Sprintf("unsupported file type: %s", format), nil)
	}
}

// convertPDF rasterizes each page at the target resolution. Bulk conversion
// over a single open document is tried first; on failure a page-by-page
// fallback loop reopens the document per page, bounded by maxPages.
func (c *Converter) convertPDF(ctx context.Context, pdfPath, format string) (*domain.ConversionResult, error) {
	images, err := c.convertBulk(ctx, pdfPath)
	if err != nil {
		c.logger.Warn().Err(err).Str("file", pdfPath).Msg("Bulk conversion failed, trying page-by-page")
		images, err = c.convertPageByPage(ctx, pdfPath)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("file", pdfPath).Msg("Rasterization unavailable, using placeholder")
		return c.placeholderResult(format, pdfPath)
	}
	if len(images) == 0 {
		return nil, domain.ValidationError("document has no pages", nil)
	}

	return &domain.ConversionResult{
		Images:    images,
		PageCount: len(images),
		Format:    format,
	}, nil
}

func (c *Converter) convertBulk(ctx context.Context, pdfPath string) ([]domain.PageImage, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("Failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > c.maxPages {
		pageCount = c.maxPages
	}

	images := make([]domain.PageImage, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pageImage, err := c.renderPage(doc, pageNum)
		if err != nil {
			return nil, err
		}
		images = append(images, pageImage)
	}

	return images, nil
}

// convertPageByPage reopens the document for every page so a single corrupt
// page cannot poison the whole run. The loop stops at the first page that
// fails to open, or at maxPages.
func (c *Converter) convertPageByPage(ctx context.Context, pdfPath string) ([]domain.PageImage, error) {
	var images []domain.PageImage

	for pageNum := 0; pageNum < c.maxPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		doc, err := fitz.New(pdfPath)
		if err != nil {
			if len(images) > 0 {
				break
			}
			return nil, domain.ConversionError("Failed to open PDF", err)
		}

		if pageNum >= doc.NumPage() {
			doc.Close()
			break
		}

		pageImage, err := c.renderPage(doc, pageNum)
		doc.Close()
		if err != nil {
			c.logger.Warn().Err(err).Int("page", pageNum+1).Msg("Page render failed, stopping fallback loop")
			break
		}
		images = append(images, pageImage)
	}

	if len(images) == 0 {
		return nil, domain.ConversionError("No pages could be rendered", nil)
	}
	return images, nil
}

// renderPage rasterizes one page, adjusting DPI so the output width stays near
// the target while preserving aspect ratio.
func (c *Converter) renderPage(doc *fitz.Document, pageNum int) (domain.PageImage, error) {
	img, err := doc.ImageDPI(pageNum, c.dpi)
	if err != nil {
		return domain.PageImage{}, domain.ConversionError(fmt.Sprintf("Failed to convert page %d", pageNum+1), err)
	}

	if width := img.Bounds().Dx(); width > c.targetWidth {
		adjusted := c.dpi * float64(c.targetWidth) / float64(width)
		if rescaled, err := doc.ImageDPI(pageNum, adjusted); err == nil {
			img = rescaled
		}
	}

	outputPath := filepath.Join(c.tempDir, fmt.Sprintf("page_%03d.png", pageNum+1))
	if err := writePNG(outputPath, img); err != nil {
		return domain.PageImage{}, err
	}

	bounds := img.Bounds()
	return domain.PageImage{
		PageNumber: pageNum + 1,
		ImagePath:  outputPath,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	}, nil
}

// officeToPDF converts a DOC/DOCX file to an intermediate PDF via LibreOffice.
func (c *Converter) officeToPDF(ctx context.Context, filePath string) (string, error) {
	soffice := c.sofficePath
	if soffice == "" {
		found, err := exec.LookPath("soffice")
		if err != nil {
			return "", domain.ConversionError("soffice binary not found", err)
		}
		soffice = found
	}

	cmd := exec.CommandContext(ctx, soffice, "--headless", "--convert-to", "pdf", "--outdir", c.tempDir, filePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", domain.ConversionError(fmt.Sprintf("office conversion failed: %s", strings.TrimSpace(string(out))), err)
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	pdfPath := filepath.Join(c.tempDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", domain.ConversionError("office conversion produced no PDF", err)
	}
	return pdfPath, nil
}

// normalizeImage re-encodes a raster image as PNG. Page count is always 1.
func (c *Converter) normalizeImage(filePath, format string) (*domain.ConversionResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, domain.IOError("Failed to open image", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		c.logger.Warn().Err(err).Str("file", filePath).Msg("Image decode failed, using placeholder")
		return c.placeholderResult(format, filePath)
	}

	outputPath := filepath.Join(c.tempDir, "page_001.png")
	if err := writePNG(outputPath, img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &domain.ConversionResult{
		Images: []domain.PageImage{{
			PageNumber: 1,
			ImagePath:  outputPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		}},
		PageCount: 1,
		Format:    format,
	}, nil
}

// convertText renders a plain-text or markdown file into paginated page
// images so text uploads flow through the same vision pipeline.
func (c *Converter) convertText(filePath, format string) (*domain.ConversionResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, domain.IOError("Failed to read text file", err)
	}

	pages := paginateText(string(data))
	if len(pages) > c.maxPages {
		pages = pages[:c.maxPages]
	}

	images := make([]domain.PageImage, 0, len(pages))
	for i, lines := range pages {
		img := renderTextPage(lines)
		outputPath := filepath.Join(c.tempDir, fmt.Sprintf("page_%03d.png", i+1))
		if err := writePNG(outputPath, img); err != nil {
			return nil, err
		}
		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: i + 1,
			ImagePath:  outputPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	return &domain.ConversionResult{
		Images:    images,
		PageCount: len(images),
		Format:    format,
	}, nil
}

// placeholderResult produces a single diagnostic image so the pipeline keeps
// progressing when no rasterization path is available.
func (c *Converter) placeholderResult(format, filePath string) (*domain.ConversionResult, error) {
	outputPath := filepath.Join(c.tempDir, "page_001.png")
	img, err := renderPlaceholder(format, filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if err := writePNG(outputPath, img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &domain.ConversionResult{
		Images: []domain.PageImage{{
			PageNumber: 1,
			ImagePath:  outputPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		}},
		PageCount:   1,
		Format:      format,
		Placeholder: true,
	}, nil
}

// Cleanup removes the temporary image directory.
func (c *Converter) Cleanup() error {
	if c.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(c.tempDir)
	c.tempDir = ""
	if err != nil {
		return domain.IOError("Failed to remove temp directory", err)
	}
	return nil
}

// TempDir returns the job-scoped temporary directory, if created.
func (c *Converter) TempDir() string {
	return c.tempDir
}

func (c *Converter) ensureTempDir() error {
	if c.tempDir != "" {
		return nil
	}
	dir, err := os.MkdirTemp(c.tempRoot, "healthspec-pages-*")
	if err != nil {
		return domain.IOError("Failed to create temp directory", err)
	}
	c.tempDir = dir
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return domain.IOError("Failed to create output file", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return domain.ConversionError("Failed to encode PNG", err)
	}
	return nil
}

// normalizeFileType maps MIME types and extensions onto a canonical format name.
func normalizeFileType(fileType, filePath string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	switch {
	case t == "application/pdf" || t == "pdf":
		return "pdf"
	case strings.Contains(t, "wordprocessingml") || t == "docx" || t == "application/docx":
		return "docx"
	case t == "application/msword" || t == "doc":
		return "doc"
	case t == "image/png" || t == "png":
		return "png"
	case t == "image/jpeg" || t == "jpg" || t == "jpeg":
		return "jpeg"
	case t == "image/gif" || t == "gif":
		return "gif"
	}

	switch {
	case t == "text/plain" || t == "txt":
		return "txt"
	case t == "text/markdown" || t == "md" || t == "markdown":
		return "md"
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	switch ext {
	case "pdf", "doc", "docx", "png", "jpg", "jpeg", "gif", "txt", "md":
		if ext == "jpg" {
			return "jpeg"
		}
		return ext
	}
	return t
}
