package dashboard

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	live = Reading{Voltage: 5.0, Current: 0.5, Power: 2.5}
	idle = Reading{Voltage: 1.5, Current: 1.0, Power: 1.0}
)

// columnOf maps a glyph write back to the port column it belongs to.
func columnOf(o op) int {
	for i := 0; i < Channels; i++ {
		if o.x < ColumnRight(i) {
			return i
		}
	}
	return -1
}

func TestNewDefaults(t *testing.T) {
	d := New(Options{})
	assert.Equal(t, uint32(DefaultClearEvery), d.clearEvery)
	assert.Equal(t, DefaultThresholds, d.thresholds)
	assert.Equal(t, [Channels]Reading{}, d.Readings())
	assert.Zero(t, d.Draws())

	d = New(Options{ClearEvery: 5, Thresholds: &Thresholds{Voltage: 4}})
	assert.Equal(t, uint32(5), d.clearEvery)
	assert.Equal(t, Thresholds{Voltage: 4}, d.thresholds)

	d = New(Options{Thresholds: &Thresholds{}})
	assert.Equal(t, Thresholds{}, d.Thresholds())
}

func TestZeroThresholdsNeverGray(t *testing.T) {
	dev := &recorder{}
	d := New(Options{Thresholds: &Thresholds{}})
	d.Update([Channels]Reading{idle})
	require.NoError(t, d.Draw(dev))
	for _, o := range dev.writeOps() {
		if columnOf(o) == 0 {
			assert.NotEqual(t, Gray, o.fg, "y=%d", o.y)
		}
	}
}

func TestColumnRight(t *testing.T) {
	assert.Equal(t, int16(53), ColumnRight(0))
	assert.Equal(t, int16(106), ColumnRight(1))
	assert.Equal(t, int16(159), ColumnRight(2))
}

func TestThresholdsIdle(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		want bool
	}{
		{name: "low voltage trips the channel", r: idle, want: true},
		{name: "healthy port", r: live, want: false},
		{name: "no load current", r: Reading{Voltage: 5, Current: 0.01, Power: 1}, want: true},
		{name: "negative current uses magnitude", r: Reading{Voltage: 5, Current: -0.5, Power: 2.5}, want: false},
		{name: "negative voltage uses magnitude", r: Reading{Voltage: -5, Current: 0.5, Power: 2.5}, want: false},
		{name: "low power", r: Reading{Voltage: 5, Current: 0.5, Power: 0.04}, want: true},
		{name: "negative power is idle", r: Reading{Voltage: 5, Current: 0.5, Power: -2.5}, want: true},
		{name: "unplugged port", r: Reading{}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultThresholds.Idle(tt.r))
		})
	}
}

func TestDrawColourPolicy(t *testing.T) {
	var dev recorder
	d := New(Options{})
	d.Update([Channels]Reading{idle, live, {Voltage: 20, Current: 3, Power: 60}})

	require.NoError(t, d.Draw(&dev))

	rowColour := map[int16]color.RGBA{0: VoltageColor, RowHeight: CurrentColor, 2 * RowHeight: PowerColor}
	for _, w := range dev.writeOps() {
		switch columnOf(w) {
		case 0:
			assert.Equal(t, Gray, w.fg, "idle port must be gray on every row (y=%d)", w.y)
		case 1, 2:
			assert.Equal(t, rowColour[w.y], w.fg, "row at y=%d", w.y)
		default:
			t.Fatalf("glyph at x=%d outside every column", w.x)
		}
	}
}

func TestDrawLayout(t *testing.T) {
	var dev recorder
	d := New(Options{})
	d.Update([Channels]Reading{live, live, live})

	require.NoError(t, d.Draw(&dev))

	// "5.00V", "0.50A", "2.50W" per port: 5 glyphs x 3 rows x 3 ports.
	writes := dev.writeOps()
	require.Len(t, writes, 45)

	tops := map[int16]int{}
	for _, w := range writes {
		tops[w.y]++
	}
	assert.Equal(t, map[int16]int{0: 15, 13: 15, 26: 15}, tops)

	for i := 0; i < Channels; i++ {
		first := writes[i*15]
		assert.Equal(t, ColumnRight(i)-5*8, first.x, "port %d starts right-aligned", i)
	}
}

func TestDrawClearCadence(t *testing.T) {
	var dev nopDevice
	d := New(Options{})

	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Draw(&dev))
	}
	assert.Equal(t, 1, dev.fills, "one clear per 1000 draws")
	assert.Equal(t, uint32(1000), d.Draws())

	require.NoError(t, d.Draw(&dev))
	assert.Equal(t, 2, dev.fills, "the 1001st draw clears again")
}

func TestDrawClearsBeforeGlyphs(t *testing.T) {
	var dev recorder
	d := New(Options{ClearEvery: 3})

	require.NoError(t, d.Draw(&dev))
	require.NotEmpty(t, dev.ops)
	assert.Equal(t, op{kind: "fill", fg: Black}, dev.ops[0])

	dev.reset()
	require.NoError(t, d.Draw(&dev))
	require.NoError(t, d.Draw(&dev))
	for _, o := range dev.ops {
		assert.Equal(t, "write", o.kind)
	}

	dev.reset()
	require.NoError(t, d.Draw(&dev))
	assert.Equal(t, "fill", dev.ops[0].kind, "fourth draw starts a new cadence")
}

func TestDrawWriteFailureAbortsFrame(t *testing.T) {
	dev := recorder{failWrite: 2}
	d := New(Options{})
	readings := [Channels]Reading{live, live, live}
	d.Update(readings)

	err := d.Draw(&dev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDriver))
	assert.True(t, errors.Is(err, errBus))

	assert.Equal(t, 2, dev.writes, "second glyph of port 0 fails, nothing after it is tried")
	for _, w := range dev.writeOps() {
		assert.Equal(t, 0, columnOf(w))
	}
	assert.Equal(t, uint32(1), d.Draws(), "the counter advances on failure")
	assert.Equal(t, readings, d.Readings())

	dev.reset()
	require.NoError(t, d.Draw(&dev))
	assert.Len(t, dev.writeOps(), 45, "the next frame redraws everything")
}

func TestDrawClearFailureSkipsFrameAndRetries(t *testing.T) {
	dev := recorder{failFill: 1}
	d := New(Options{})
	d.Update([Channels]Reading{live, live, live})

	err := d.Draw(&dev)
	require.Error(t, err)
	var de *DriverError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "clear", de.Op)
	assert.Equal(t, "dashboard: clear: spi: tx timeout", err.Error())
	assert.Empty(t, dev.writeOps(), "no glyphs over a failed clear")
	assert.Equal(t, uint32(1), d.Draws())

	dev.reset()
	require.NoError(t, d.Draw(&dev))
	assert.Equal(t, "fill", dev.ops[0].kind, "pending clear is retried off-cadence")
	assert.Len(t, dev.writeOps(), 45)

	dev.reset()
	require.NoError(t, d.Draw(&dev))
	assert.Equal(t, "write", dev.ops[0].kind, "retry succeeded, back on cadence")
}

func TestUpdateOverwritesAllPorts(t *testing.T) {
	d := New(Options{})
	d.Update([Channels]Reading{live, live, live})
	d.Update([Channels]Reading{idle})
	assert.Equal(t, [Channels]Reading{idle, {}, {}}, d.Readings())
}

func TestDrawDoesNotAllocate(t *testing.T) {
	var dev nopDevice
	d := New(Options{})
	d.Update([Channels]Reading{live, idle, {Voltage: -12.75, Current: -1.5, Power: 19.12}})

	allocs := testing.AllocsPerRun(50, func() {
		_ = d.Draw(&dev)
	})
	assert.Zero(t, allocs)
}

func TestDrawWidestValueFitsTextBuffer(t *testing.T) {
	const widest = float32(-2147483520) // "-2147483520.00", numfmt.MaxLen bytes
	assert.Equal(t, 15, len(Dashboard{}.text))

	var dev nopDevice
	d := New(Options{})
	d.Update([Channels]Reading{{Voltage: widest, Current: widest, Power: widest}})
	allocs := testing.AllocsPerRun(20, func() {
		_ = d.Draw(&dev)
	})
	assert.Zero(t, allocs)
}
