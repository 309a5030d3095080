package panel

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"

	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
	"github.com/harveysanders/hubmonitor/hubmonitor/font"
)

var (
	_ dashboard.Device  = (*TFT)(nil)
	_ dashboard.Device  = (*Canvas)(nil)
	_ drivers.Displayer = (*Canvas)(nil)
	_ Controller        = (*Canvas)(nil)
)

var (
	red   = color.RGBA{R: 0xFF, A: 0xFF}
	green = color.RGBA{G: 0xFF, A: 0xFF}
	black = color.RGBA{A: 0xFF}
)

type rect struct{ x, y, w, h int16 }

type fakeController struct {
	fills   []rect
	buffers []rect
	lastLen int
	err     error
}

func (f *fakeController) Size() (int16, int16) { return 160, 40 }

func (f *fakeController) FillRectangle(x, y, w, h int16, _ color.RGBA) error {
	f.fills = append(f.fills, rect{x, y, w, h})
	return f.err
}

func (f *fakeController) FillRectangleWithBuffer(x, y, w, h int16, buf []color.RGBA) error {
	f.buffers = append(f.buffers, rect{x, y, w, h})
	f.lastLen = len(buf)
	return f.err
}

func TestTFTFillCoversPanel(t *testing.T) {
	var c fakeController
	require.NoError(t, NewTFT(&c).Fill(black))
	assert.Equal(t, []rect{{0, 0, 160, 40}}, c.fills)
}

func TestTFTWriteRect(t *testing.T) {
	var c fakeController
	tft := NewTFT(&c)

	px := make([]color.RGBA, font.Width*font.Height+4)
	require.NoError(t, tft.WriteRect(13, 26, font.Width, font.Height, px))
	assert.Equal(t, []rect{{13, 26, font.Width, font.Height}}, c.buffers)
	assert.Equal(t, font.Width*font.Height, c.lastLen, "buffer is trimmed to the rect")

	err := tft.WriteRect(0, 0, font.Width, font.Height, px[:10])
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Len(t, c.buffers, 1)
}

func TestTFTPropagatesDriverErrors(t *testing.T) {
	busErr := errors.New("spi: tx timeout")
	c := fakeController{err: busErr}
	tft := NewTFT(&c)

	assert.ErrorIs(t, tft.Fill(black), busErr)
	assert.ErrorIs(t, tft.WriteRect(0, 0, 1, 1, []color.RGBA{red}), busErr)
	assert.ErrorIs(t, tft.Stripes(TestPattern), busErr)
	assert.Len(t, c.fills, 2, "stripes stop at the first failure")
}

func TestTFTStripes(t *testing.T) {
	var c fakeController
	require.NoError(t, NewTFT(&c).Stripes(TestPattern))

	require.Len(t, c.fills, 8)
	for i, r := range c.fills {
		assert.Equal(t, rect{int16(i * 20), 0, 20, 40}, r)
	}
	require.NoError(t, NewTFT(&c).Stripes(nil))
	assert.Len(t, c.fills, 8)
}

func TestCanvasStartsBlack(t *testing.T) {
	c := NewCanvas(4, 2)
	w, h := c.Size()
	assert.Equal(t, int16(4), w)
	assert.Equal(t, int16(2), h)
	assert.Equal(t, black, c.At(3, 1))
	assert.Zero(t, c.Fills)
}

func TestCanvasWriteRect(t *testing.T) {
	c := NewCanvas(4, 4)
	require.NoError(t, c.WriteRect(1, 1, 2, 2, []color.RGBA{red, green, green, red}))

	assert.Equal(t, red, c.At(1, 1))
	assert.Equal(t, green, c.At(2, 1))
	assert.Equal(t, green, c.At(1, 2))
	assert.Equal(t, red, c.At(2, 2))
	assert.Equal(t, black, c.At(0, 0))
	assert.Equal(t, 1, c.Writes)

	assert.ErrorIs(t, c.WriteRect(3, 3, 2, 2, make([]color.RGBA, 4)), ErrOutOfBounds)
	assert.ErrorIs(t, c.WriteRect(0, 0, 2, 2, make([]color.RGBA, 3)), ErrShortBuffer)
	assert.Equal(t, 3, c.Writes)
}

func TestCanvasFill(t *testing.T) {
	c := NewCanvas(3, 3)
	require.NoError(t, c.Fill(green))
	assert.Equal(t, green, c.At(0, 0))
	assert.Equal(t, green, c.At(2, 2))
	assert.Equal(t, 1, c.Fills)
}

func TestCanvasFillRectangleStaysInside(t *testing.T) {
	c := NewCanvas(5, 5)
	require.NoError(t, c.FillRectangle(1, 2, 3, 2, red))

	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := black
			if x >= 1 && x < 4 && y >= 2 && y < 4 {
				want = red
			}
			assert.Equal(t, want, c.At(x, y), "(%d,%d)", x, y)
		}
	}
	assert.Zero(t, c.Fills)
}

func TestCanvasAsController(t *testing.T) {
	c := NewCanvas(160, 40)
	tft := NewTFT(c)

	require.NoError(t, tft.Stripes(TestPattern))
	assert.Equal(t, TestPattern[0], c.At(0, 0))
	assert.Equal(t, TestPattern[7], c.At(159, 39))
	assert.Equal(t, TestPattern[3], c.At(65, 20))

	require.NoError(t, tft.WriteRect(0, 0, 1, 1, []color.RGBA{red}))
	assert.Equal(t, red, c.At(0, 0))
	assert.Zero(t, c.Writes, "controller calls are not counted as device writes")
	assert.ErrorIs(t, c.FillRectangle(150, 0, 20, 1, red), ErrOutOfBounds)
}

func TestCanvasRendersDashboard(t *testing.T) {
	c := NewCanvas(dashboard.ScreenWidth, dashboard.ScreenHeight)
	d := dashboard.New(dashboard.Options{})
	d.Update([dashboard.Channels]dashboard.Reading{{Voltage: 5, Current: 0.5, Power: 2.5}})

	require.NoError(t, d.Draw(c))
	assert.Equal(t, 1, c.Fills)
	assert.Equal(t, 45, c.Writes)

	// Port 0 is idle-free here; its "V" sits in the last cell before x=53.
	var lit bool
	for y := 0; y < font.Height; y++ {
		for x := 45; x < 53; x++ {
			if c.At(x, y) == dashboard.VoltageColor {
				lit = true
			}
		}
	}
	assert.True(t, lit, "voltage unit glyph drawn in yellow")
}

func TestCanvasSetPixelViaTinyfont(t *testing.T) {
	c := NewCanvas(32, 16)
	tinyfont.WriteLine(c, font.Fonter, 0, 10, "-", red)

	assert.Equal(t, red, c.At(1, 5))
	assert.Equal(t, red, c.At(6, 5))
	assert.Equal(t, black, c.At(0, 5))
	assert.Equal(t, black, c.At(1, 4))

	c.SetPixel(-1, 100, red)
	require.NoError(t, c.Display())
}
