package panel

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrOutOfBounds is returned for blits that do not fit on the canvas.
var ErrOutOfBounds = errors.New("rect outside canvas")

// Canvas is an in-memory display. It implements dashboard.Device and
// drivers.Displayer and counts the device operations it receives.
type Canvas struct {
	img *image.RGBA

	Fills  int
	Writes int
}

// NewCanvas returns a black w*h canvas.
func NewCanvas(w, h int) *Canvas {
	c := &Canvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
	c.paint(c.img.Bounds(), color.RGBA{A: 0xFF})
	return c
}

// Image returns the backing image. It aliases the canvas.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Fill paints the whole canvas.
func (c *Canvas) Fill(col color.RGBA) error {
	c.Fills++
	c.paint(c.img.Bounds(), col)
	return nil
}

// WriteRect copies a row-major w*h block to (x, y).
func (c *Canvas) WriteRect(x, y, w, h int16, pixels []color.RGBA) error {
	c.Writes++
	r := image.Rect(int(x), int(y), int(x)+int(w), int(y)+int(h))
	if !r.In(c.img.Bounds()) {
		return ErrOutOfBounds
	}
	if len(pixels) < r.Dx()*r.Dy() {
		return ErrShortBuffer
	}
	for row := 0; row < r.Dy(); row++ {
		for col := 0; col < r.Dx(); col++ {
			c.img.SetRGBA(r.Min.X+col, r.Min.Y+row, pixels[row*r.Dx()+col])
		}
	}
	return nil
}

// Size is part of drivers.Displayer.
func (c *Canvas) Size() (x, y int16) {
	b := c.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

// SetPixel is part of drivers.Displayer. Off-canvas pixels are dropped.
func (c *Canvas) SetPixel(x, y int16, col color.RGBA) {
	c.img.SetRGBA(int(x), int(y), col)
}

// Display is part of drivers.Displayer; the canvas has nothing to flush.
func (c *Canvas) Display() error { return nil }

// FillRectangle lets a Canvas stand in for a Controller.
func (c *Canvas) FillRectangle(x, y, width, height int16, col color.RGBA) error {
	r := image.Rect(int(x), int(y), int(x)+int(width), int(y)+int(height))
	if !r.In(c.img.Bounds()) {
		return ErrOutOfBounds
	}
	c.paint(r, col)
	return nil
}

// FillRectangleWithBuffer lets a Canvas stand in for a Controller.
func (c *Canvas) FillRectangleWithBuffer(x, y, width, height int16, buffer []color.RGBA) error {
	err := c.WriteRect(x, y, width, height, buffer)
	c.Writes--
	return err
}

// At returns the pixel at (x, y).
func (c *Canvas) At(x, y int) color.RGBA {
	return c.img.RGBAAt(x, y)
}

func (c *Canvas) paint(r image.Rectangle, col color.RGBA) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}
