package dashboard

import (
	"errors"
	"image/color"
	"strconv"
)

// Device is the display surface the dashboard draws on. Both operations may
// block until the transfer is handed to the bus and may fail.
type Device interface {
	// Fill paints the whole surface with c.
	Fill(c color.RGBA) error
	// WriteRect blits a w*h row-major pixel block with its top-left corner
	// at (x, y). len(pixels) is always exactly w*h.
	WriteRect(x, y, w, h int16, pixels []color.RGBA) error
}

// ErrDriver matches every device failure reported by DrawText and Draw.
var ErrDriver = errors.New("display driver error")

// DriverError records which device operation failed and where.
type DriverError struct {
	Op   string // "clear" or "write"
	X, Y int16
	Err  error
}

func (e *DriverError) Error() string {
	msg := "dashboard: " + e.Op
	if e.Op != "clear" {
		msg += " at " + strconv.Itoa(int(e.X)) + "," + strconv.Itoa(int(e.Y))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DriverError) Unwrap() error { return e.Err }

// Is reports ErrDriver as a match so callers need not know the concrete type.
func (e *DriverError) Is(target error) bool { return target == ErrDriver }
