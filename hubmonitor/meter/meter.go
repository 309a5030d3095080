// Package meter samples per-port voltage, current and power from INA260
// power monitors. A Channel caches its last good reading so a single missed
// I2C transaction does not blank a port on the dashboard.
package meter

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
)

// DefaultMaxAge is how long a cached reading stands in for a silent sensor.
const DefaultMaxAge = time.Second

// ErrNotConnected is returned when the monitor does not answer on the bus.
var ErrNotConnected = errors.New("power monitor not connected")

// Device is the subset of *ina260.Device a Channel reads from.
type Device interface {
	Connected() bool
	Voltage() int32 // µV
	Current() int32 // µA
	Power() int32   // µW
}

// Channel wraps one power monitor with last-good caching.
type Channel struct {
	dev      Device            // Underlying monitor.
	cached   dashboard.Reading // Last successfully read values.
	lastRead time.Time         // Timestamp of the last successful read.
	hasCache bool              // Whether cached holds a real reading.

	// MaxAge bounds how stale a cached reading may be before Read falls
	// back to zero.
	MaxAge time.Duration
	now    func() time.Time
}

// NewChannel wraps dev. dev must already be configured.
func NewChannel(dev Device) *Channel {
	return &Channel{
		dev:    dev,
		MaxAge: DefaultMaxAge,
		now:    time.Now,
	}
}

// Read samples the monitor and converts to volts, amps and watts.
// When the monitor is silent it returns the cached reading if it is younger
// than MaxAge, otherwise the zero reading, together with ErrNotConnected.
func (c *Channel) Read() (r dashboard.Reading, isCached bool, err error) {
	now := c.now()
	if !c.dev.Connected() {
		if c.hasCache && now.Sub(c.lastRead) < c.MaxAge {
			return c.cached, true, ErrNotConnected
		}
		return dashboard.Reading{}, false, ErrNotConnected
	}

	r = dashboard.Reading{
		Voltage: float32(c.dev.Voltage()) / 1e6,
		Current: float32(c.dev.Current()) / 1e6,
		Power:   float32(c.dev.Power()) / 1e6,
	}
	c.cached = r
	c.lastRead = now
	c.hasCache = true
	return r, false, nil
}

// Bank polls one Channel per dashboard port.
type Bank struct {
	Channels [dashboard.Channels]*Channel
	Logger   *slog.Logger

	failures [dashboard.Channels]uint32
}

// NewBank builds a Bank over the given monitors. A nil device leaves the
// port permanently at zero.
func NewBank(logger *slog.Logger, devs [dashboard.Channels]Device) *Bank {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bank{Logger: logger}
	for i, d := range devs {
		if d != nil {
			b.Channels[i] = NewChannel(d)
		}
	}
	return b
}

// Read returns a full set of readings. Ports that fail to read are logged
// and reported as their cached or zero value.
func (b *Bank) Read() [dashboard.Channels]dashboard.Reading {
	var out [dashboard.Channels]dashboard.Reading
	for i, ch := range b.Channels {
		if ch == nil {
			continue
		}
		r, cached, err := ch.Read()
		if err != nil {
			b.failures[i]++
			b.Logger.Warn("meter:read-failed",
				slog.Int("port", i+1),
				slog.Bool("cached", cached),
				slog.Any("reason", err),
			)
		}
		out[i] = r
	}
	return out
}

// Failures returns the per-port count of failed reads since boot.
func (b *Bank) Failures() [dashboard.Channels]uint32 {
	return b.failures
}
