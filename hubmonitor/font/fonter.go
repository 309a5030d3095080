package font

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// Fonter exposes the glyph table to tinyfont so status text can be written
// with tinyfont.WriteLine on any drivers.Displayer.
//
// Not safe for concurrent use: GetGlyph reuses one glyph value.
var Fonter tinyfont.Fonter = &fonter{}

// Baseline is the cell row tinyfont's y coordinate points at.
const Baseline = 10

type fonter struct {
	g glyph
}

type glyph struct {
	r  rune
	bm *Bitmap
}

func (f *fonter) GetYAdvance() uint8 { return Height + 1 }

func (f *fonter) GetGlyph(r rune) tinyfont.Glypher {
	f.g.r = r
	f.g.bm, _ = Lookup(r)
	return &f.g
}

// Draw sets the foreground pixels only; the background is left untouched.
// Unsupported runes draw nothing but still advance a full cell.
func (g *glyph) Draw(display drivers.Displayer, x, y int16, c color.RGBA) {
	if g.bm == nil {
		return
	}
	top := y - Baseline
	for row, bits := range g.bm {
		if bits == 0 {
			continue
		}
		for col := 0; col < Width; col++ {
			if bits&(0x80>>col) != 0 {
				display.SetPixel(x+int16(col), top+int16(row), c)
			}
		}
	}
}

func (g *glyph) Info() tinyfont.GlyphInfo {
	return tinyfont.GlyphInfo{
		Rune:     g.r,
		Width:    Width,
		Height:   Height,
		XAdvance: Width,
		XOffset:  0,
		YOffset:  -Baseline,
	}
}
