// Package render turns a simulated panel frame into something a person can
// look at on a workstation: an enlarged PNG or a truecolor terminal view.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// upper half block: foreground is the top pixel, background the bottom one.
const halfBlock = "▀"

// Upscale returns src enlarged by scale in both directions with hard pixel
// edges. A scale below 1 is treated as 1.
func Upscale(src *image.RGBA, scale int) *image.RGBA {
	scale = max(scale, 1)
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// WritePNG encodes img enlarged by scale to w.
func WritePNG(w io.Writer, img *image.RGBA, scale int) error {
	return png.Encode(w, Upscale(img, scale))
}

// HalfBlocks renders img as lines of half-block cells, two pixel rows per
// line. An odd final row is paired with black.
func HalfBlocks(img *image.RGBA) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			top := img.RGBAAt(x, y)
			bottom := color.RGBA{A: 0xFF}
			if y+1 < b.Max.Y {
				bottom = img.RGBAAt(x, y+1)
			}
			style := lipgloss.NewStyle().
				Foreground(hex(top)).
				Background(hex(bottom))
			sb.WriteString(style.Render(halfBlock))
		}
	}
	return sb.String()
}

func hex(c color.RGBA) lipgloss.Color {
	const digits = "0123456789abcdef"
	buf := [7]byte{'#'}
	for i, v := range [3]uint8{c.R, c.G, c.B} {
		buf[1+2*i] = digits[v>>4]
		buf[2+2*i] = digits[v&0x0F]
	}
	return lipgloss.Color(buf[:])
}
