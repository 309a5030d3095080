// Package banner shows two-line status messages on the TFT during bring-up,
// before the dashboard owns the screen.
//
// Example usage:
//
//	msgs := make(chan banner.Message, 4)
//	screen := banner.New(display, msgs, logger)
//	go wifiBringUp(msgs)
//	screen.Run(10 * time.Second)
//
//	// in wifiBringUp; never blocks, drops when full
//	banner.Send(msgs, "DHCP", "OK")
package banner

import (
	"image/color"
	"io"
	"log/slog"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"

	"github.com/harveysanders/hubmonitor/hubmonitor/font"
)

// Display is a drivers.Displayer that can also fill rectangles, such as
// *st7735.Device or *panel.Canvas.
type Display interface {
	drivers.Displayer
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Message represents a two-line status message.
type Message struct {
	Line1 []byte
	Line2 []byte
}

var (
	Background = color.RGBA{A: 0xFF}
	Foreground = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// Screen draws Messages with the dashboard font.
type Screen struct {
	display  Display
	messages <-chan Message
	logger   *slog.Logger
	columns  int
}

// New creates a Screen. messages may be nil when only Show is used.
func New(display Display, messages <-chan Message, logger *slog.Logger) *Screen {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w, _ := display.Size()
	return &Screen{
		display:  display,
		messages: messages,
		logger:   logger,
		columns:  int(w) / font.Width,
	}
}

// Run shows messages from the channel until it is closed or, when timeout
// is positive, until timeout elapses. It returns the number of messages shown.
func (s *Screen) Run(timeout time.Duration) int {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	shown := 0
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return shown
			}
			if err := s.Show(msg); err != nil {
				s.logger.Error("banner:show-failed", slog.Any("reason", err))
				continue
			}
			shown++
		case <-expired:
			return shown
		}
	}
}

// Show clears the screen and writes both lines, truncated to the screen
// width. Characters outside the font leave a blank cell.
func (s *Screen) Show(msg Message) error {
	w, h := s.display.Size()
	if err := s.display.FillRectangle(0, 0, w, h, Background); err != nil {
		return err
	}
	s.writeLine(0, msg.Line1)
	s.writeLine(1, msg.Line2)
	return s.display.Display()
}

func (s *Screen) writeLine(row int, line []byte) {
	if len(line) > s.columns {
		line = line[:s.columns]
	}
	text := string(line)
	if !font.Supported(text) {
		s.logger.Warn("banner:unsupported-text", slog.Int("row", row+1), slog.String("text", text))
	}
	y := int16(row)*int16(font.Fonter.GetYAdvance()) + font.Baseline
	tinyfont.WriteLine(s.display, font.Fonter, 0, y, text, Foreground)
}

// Send queues a message without blocking. It is a no-op on a nil channel
// and drops the message when the channel is full.
func Send(ch chan<- Message, line1, line2 string) {
	if ch == nil {
		return
	}
	select {
	case ch <- Message{Line1: []byte(line1), Line2: []byte(line2)}:
	default:
	}
}
