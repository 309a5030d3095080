package dashboard

import (
	"errors"
	"image/color"
)

var errBus = errors.New("spi: tx timeout")

type op struct {
	kind       string // "fill" or "write"
	x, y, w, h int16
	fg         color.RGBA // first non-black pixel of a write, or the fill colour
}

// recorder is a Device that remembers every call and can be told to fail
// on a given fill or write (1-based, counted across the recorder's life).
type recorder struct {
	ops       []op
	fills     int
	writes    int
	failFill  int
	failWrite int
}

func (r *recorder) Fill(c color.RGBA) error {
	r.fills++
	r.ops = append(r.ops, op{kind: "fill", fg: c})
	if r.fills == r.failFill {
		return errBus
	}
	return nil
}

func (r *recorder) WriteRect(x, y, w, h int16, pixels []color.RGBA) error {
	r.writes++
	o := op{kind: "write", x: x, y: y, w: w, h: h}
	for _, p := range pixels {
		if p != Black {
			o.fg = p
			break
		}
	}
	if len(pixels) != int(w)*int(h) {
		panic("pixel buffer does not match rect size")
	}
	r.ops = append(r.ops, o)
	if r.writes == r.failWrite {
		return errBus
	}
	return nil
}

func (r *recorder) writeOps() []op {
	var out []op
	for _, o := range r.ops {
		if o.kind == "write" {
			out = append(out, o)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.ops = r.ops[:0]
}

// nopDevice accepts everything without allocating.
type nopDevice struct{ fills, writes int }

func (n *nopDevice) Fill(color.RGBA) error { n.fills++; return nil }
func (n *nopDevice) WriteRect(_, _, _, _ int16, _ []color.RGBA) error {
	n.writes++
	return nil
}
