package dashboard

import (
	"image/color"
	"unicode/utf8"

	"github.com/harveysanders/hubmonitor/hubmonitor/font"
)

// StartX returns the left edge of a right-aligned run of chars glyph cells
// ending at rightEdge. Text wider than rightEdge starts at 0 and simply runs
// past the anchor.
func StartX(rightEdge int16, chars int) int16 {
	width := chars * font.Width
	if width >= int(rightEdge) {
		return 0
	}
	return rightEdge - int16(width)
}

// DrawText renders text right-aligned to rightEdge with its top row at top.
//
// Every glyph goes through cell, which is overwritten per character, and
// costs one WriteRect. Characters without a glyph (including bytes that are
// not valid UTF-8) leave a blank advance. The first device failure stops the
// string; glyphs already sent stay on screen.
func DrawText(dev Device, text []byte, rightEdge, top int16, fg, bg color.RGBA, cell *font.Cell) error {
	x := StartX(rightEdge, utf8.RuneCount(text))
	for len(text) > 0 {
		r, size := utf8.DecodeRune(text)
		text = text[size:]

		if b, ok := font.Lookup(r); ok {
			font.Rasterize(b, fg, bg, cell)
			if err := dev.WriteRect(x, top, font.Width, font.Height, cell[:]); err != nil {
				return &DriverError{Op: "write", X: x, Y: top, Err: err}
			}
		}
		x += font.Width
	}
	return nil
}
