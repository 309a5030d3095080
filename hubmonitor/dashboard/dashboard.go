// Package dashboard renders the live per-port voltage, current and power
// readout. It keeps the latest readings, decides colours and how often the
// whole screen is cleared, and lays the numbers out right-aligned in three
// columns using the 8x12 font.
//
// Nothing here allocates per frame: the glyph cell and the text buffer are
// owned by the Dashboard and reused for every string it draws.
package dashboard

import (
	"image/color"

	"github.com/harveysanders/hubmonitor/hubmonitor/font"
	"github.com/harveysanders/hubmonitor/hubmonitor/numfmt"
)

// Screen geometry in logical pixels.
const (
	ScreenWidth  = 160
	ScreenHeight = 40
	Channels     = 3
	RowSpacing   = 1
	RowHeight    = font.Height + RowSpacing

	// DefaultClearEvery is the number of Draw calls between full clears.
	DefaultClearEvery = 1000
)

// Colours. Gray is the panel's RGB565 (15, 30, 15) widened to 8 bits.
var (
	Black        = color.RGBA{A: 0xFF}
	Gray         = color.RGBA{R: 0x7B, G: 0x79, B: 0x7B, A: 0xFF}
	VoltageColor = color.RGBA{R: 0xFF, G: 0xFF, A: 0xFF}
	CurrentColor = color.RGBA{R: 0xFF, A: 0xFF}
	PowerColor   = color.RGBA{G: 0xFF, A: 0xFF}
)

// Reading is one poll of a port in volts, amps and watts.
type Reading struct {
	Voltage float32
	Current float32
	Power   float32
}

// Thresholds below which a port is shown as idle.
type Thresholds struct {
	Voltage float32 // compared against |V|
	Current float32 // compared against |A|
	Power   float32 // compared against W as-is
}

// DefaultThresholds matches an unplugged or barely loaded USB port.
var DefaultThresholds = Thresholds{Voltage: 2.0, Current: 0.05, Power: 0.05}

// Idle reports whether r should be drawn gray. One low metric is enough.
func (t Thresholds) Idle(r Reading) bool {
	return abs(r.Voltage) < t.Voltage || abs(r.Current) < t.Current || r.Power < t.Power
}

// Palette returns the voltage, current and power colours for r. An idle
// port is gray across all three rows.
func (t Thresholds) Palette(r Reading) (v, a, w color.RGBA) {
	if t.Idle(r) {
		return Gray, Gray, Gray
	}
	return VoltageColor, CurrentColor, PowerColor
}

// Options tune the dashboard. A zero ClearEvery or a nil Thresholds takes
// the default. Explicit zero thresholds are kept and disable the gray
// override.
type Options struct {
	ClearEvery uint32
	Thresholds *Thresholds
}

// Dashboard holds the latest readings and the repaint counter. It is meant to
// be driven from a single loop: Update, then Draw, never concurrently.
type Dashboard struct {
	channels     [Channels]Reading
	draws        uint32
	clearPending bool

	clearEvery uint32
	thresholds Thresholds

	cell font.Cell
	text [numfmt.MaxLen + 1]byte
}

// New returns a dashboard with all ports at zero.
func New(opts Options) *Dashboard {
	d := &Dashboard{
		clearEvery: opts.ClearEvery,
		thresholds: DefaultThresholds,
	}
	if d.clearEvery == 0 {
		d.clearEvery = DefaultClearEvery
	}
	if opts.Thresholds != nil {
		d.thresholds = *opts.Thresholds
	}
	return d
}

// Update replaces every port reading.
func (d *Dashboard) Update(readings [Channels]Reading) {
	d.channels = readings
}

// Readings returns the readings the next Draw will show.
func (d *Dashboard) Readings() [Channels]Reading { return d.channels }

// Thresholds returns the idle thresholds in effect.
func (d *Dashboard) Thresholds() Thresholds { return d.thresholds }

// Draws returns how many times Draw has been called.
func (d *Dashboard) Draws() uint32 { return d.draws }

// Draw renders one frame.
//
// On every ClearEvery-th call, starting with the first, the screen is filled
// black before drawing. If that fill fails the frame is skipped, the error is
// returned and the clear is retried on the next call. Any glyph write failure
// aborts the rest of the frame. The call counter advances either way.
func (d *Dashboard) Draw(dev Device) error {
	wipe := d.draws%d.clearEvery == 0 || d.clearPending
	d.draws++
	if wipe {
		if err := dev.Fill(Black); err != nil {
			d.clearPending = true
			return &DriverError{Op: "clear", Err: err}
		}
		d.clearPending = false
	}

	for i, r := range d.channels {
		right := ColumnRight(i)
		vc, ac, wc := d.thresholds.Palette(r)
		if err := d.drawMetric(dev, r.Voltage, 'V', right, 0, vc); err != nil {
			return err
		}
		if err := d.drawMetric(dev, r.Current, 'A', right, RowHeight, ac); err != nil {
			return err
		}
		if err := d.drawMetric(dev, r.Power, 'W', right, 2*RowHeight, wc); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dashboard) drawMetric(dev Device, v float32, unit byte, right, top int16, fg color.RGBA) error {
	s := numfmt.AppendFixed2(d.text[:0], v)
	s = append(s, unit)
	return DrawText(dev, s, right, top, fg, Black, &d.cell)
}

// ColumnRight is the right edge of port i's column.
func ColumnRight(i int) int16 {
	return int16((i + 1) * (ScreenWidth / Channels))
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
