package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 1500
	placeholderHeight = 1100
)

// renderPlaceholder draws a diagnostic page image naming the source format
// and file so the vision model (and a human inspecting the job) can tell a
// degraded conversion from a blank page.
func renderPlaceholder(format, fileName string) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	border := color.RGBA{R: 120, G: 120, B: 120, A: 255}
	for x := 0; x < placeholderWidth; x++ {
		img.Set(x, 0, border)
		img.Set(x, placeholderHeight-1, border)
	}
	for y := 0; y < placeholderHeight; y++ {
		img.Set(0, y, border)
		img.Set(placeholderWidth-1, y, border)
	}

	lines := []string{
		"DOCUMENT CONVERSION UNAVAILABLE",
		fmt.Sprintf("Format: %s", format),
		fmt.Sprintf("File: %s", fileName),
		"The native rasterization toolchain could not render this document.",
		"Text extraction will proceed with reduced fidelity.",
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}

	y := 80
	for _, line := range lines {
		drawer.Dot = fixed.P(60, y)
		drawer.DrawString(line)
		y += 30
	}

	return img, nil
}
