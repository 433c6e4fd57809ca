package convert

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	textPageWidth  = 1500
	textPageHeight = 1100
	textMarginX    = 60
	textMarginY    = 60
	textLineStep   = 18
	textWrapCol    = 190 // characters per line at 7px glyph width
)

// linesPerTextPage is how many wrapped lines fit on one rendered page.
const linesPerTextPage = (textPageHeight - 2*textMarginY) / textLineStep

// paginateText wraps raw text at a fixed column and splits it into pages.
func paginateText(text string) [][]string {
	var wrapped []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.ReplaceAll(line, "\t", "    ")
		if line == "" {
			wrapped = append(wrapped, "")
			continue
		}
		for len(line) > textWrapCol {
			cut := strings.LastIndex(line[:textWrapCol], " ")
			if cut <= 0 {
				cut = textWrapCol
			}
			wrapped = append(wrapped, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		wrapped = append(wrapped, line)
	}

	var pages [][]string
	for start := 0; start < len(wrapped); start += linesPerTextPage {
		end := start + linesPerTextPage
		if end > len(wrapped) {
			end = len(wrapped)
		}
		pages = append(pages, wrapped[start:end])
	}
	if len(pages) == 0 {
		pages = [][]string{{""}}
	}
	return pages
}

// renderTextPage draws one page worth of wrapped lines.
func renderTextPage(lines []string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, textPageWidth, textPageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}

	y := textMarginY
	for _, line := range lines {
		drawer.Dot = fixed.P(textMarginX, y)
		drawer.DrawString(line)
		y += textLineStep
	}
	return img
}
