// Package panel provides the surfaces the dashboard draws on: TFT adapts a
// tinygo.org/x/drivers SPI display controller, Canvas is an in-memory
// surface for the simulator and tests.
package panel

import (
	"errors"
	"image/color"
)

// ErrShortBuffer is returned when a blit carries fewer pixels than its rect.
var ErrShortBuffer = errors.New("pixel buffer smaller than rect")

// Controller is the part of a drivers display (st7735, st7789, ili9341)
// the dashboard needs.
type Controller interface {
	Size() (x, y int16)
	FillRectangle(x, y, width, height int16, c color.RGBA) error
	FillRectangleWithBuffer(x, y, width, height int16, buffer []color.RGBA) error
}

// TFT adapts a Controller to dashboard.Device.
type TFT struct {
	dev Controller
}

// NewTFT wraps dev. dev must already be configured.
func NewTFT(dev Controller) *TFT {
	return &TFT{dev: dev}
}

// Fill paints the whole panel with c.
func (t *TFT) Fill(c color.RGBA) error {
	w, h := t.dev.Size()
	return t.dev.FillRectangle(0, 0, w, h, c)
}

// WriteRect blits pixels into the w*h window at (x, y).
func (t *TFT) WriteRect(x, y, w, h int16, pixels []color.RGBA) error {
	n := int(w) * int(h)
	if len(pixels) < n {
		return ErrShortBuffer
	}
	return t.dev.FillRectangleWithBuffer(x, y, w, h, pixels[:n])
}

// Stripes draws the power-on test pattern: one vertical band per colour
// across the full panel height.
func (t *TFT) Stripes(colors []color.RGBA) error {
	if len(colors) == 0 {
		return nil
	}
	w, h := t.dev.Size()
	band := w / int16(len(colors))
	for i, c := range colors {
		if err := t.dev.FillRectangle(int16(i)*band, 0, band, h, c); err != nil {
			return err
		}
	}
	return nil
}

// TestPattern is the stripe order shown at boot.
var TestPattern = []color.RGBA{
	{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	{R: 0xFF, G: 0xFF, A: 0xFF},
	{G: 0xFF, B: 0xFF, A: 0xFF},
	{G: 0xFF, A: 0xFF},
	{R: 0xFF, B: 0xFF, A: 0xFF},
	{R: 0xFF, A: 0xFF},
	{B: 0xFF, A: 0xFF},
	{A: 0xFF},
}
