// Package font is the fixed 8x12 monospace glyph source used by the
// dashboard. Bitmaps live in a package-level table so lookups never allocate,
// and rasterizing writes into a caller-owned Cell that is reused for every
// glyph in a frame.
package font

import "image/color"

const (
	// Width and Height are the glyph cell size in pixels.
	Width  = 8
	Height = 12

	first = ' '
	last  = 'Z'
)

// Bitmap is a monochrome 8x12 glyph, one byte per row, MSB leftmost.
type Bitmap [Height]uint8

// Cell is a pixel buffer sized to exactly one glyph, row-major.
type Cell [Width * Height]color.RGBA

// Lookup returns the bitmap for r. Lower-case letters fold to upper case.
// The second result is false for runes the table does not carry; callers
// treat that as "nothing to draw", not as an error.
func Lookup(r rune) (*Bitmap, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < first || r > last {
		return nil, false
	}
	b := &glyphs[r-first]
	if r != ' ' && *b == (Bitmap{}) {
		return nil, false
	}
	return b, true
}

// Rasterize paints b into dst, set bits in fg and clear bits in bg.
func Rasterize(b *Bitmap, fg, bg color.RGBA, dst *Cell) {
	for y, row := range b {
		line := dst[y*Width : (y+1)*Width]
		for x := range line {
			if row&(0x80>>x) != 0 {
				line[x] = fg
			} else {
				line[x] = bg
			}
		}
	}
}

// Supported reports whether every rune of s has a glyph.
func Supported(s string) bool {
	for _, r := range s {
		if _, ok := Lookup(r); !ok {
			return false
		}
	}
	return true
}
