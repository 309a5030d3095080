// Package console implements the line-oriented settings shell served on the
// USB serial port.
//
//	help                  list commands
//	get [key]             print one or all settings
//	set <key> <value>     change a setting in memory
//	reset                 restore factory settings in memory
//	save                  persist settings; they apply after reboot
//
// Every command answers with a single line starting with "ok" or "err".
package console

import (
	"errors"
	"io"
	"log/slog"

	"github.com/google/shlex"

	"github.com/harveysanders/hubmonitor/hubmonitor/config"
)

// MaxLine is the longest accepted command line; longer input is discarded
// up to the next newline.
const MaxLine = 64

var errUsage = errors.New("wrong number of arguments")

// Saver persists settings. *storage.Manager implements it.
type Saver interface {
	SaveSettings(s *config.Settings) error
}

// Handler owns the pending settings edited by console commands.
type Handler struct {
	Settings config.Settings
	Store    Saver
	Out      io.Writer
	Logger   *slog.Logger

	line     [MaxLine]byte
	n        int
	overflow bool
	reply    []byte
	dirty    bool
}

// New returns a Handler editing a copy of s.
func New(s config.Settings, store Saver, out io.Writer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Settings: s,
		Store:    store,
		Out:      out,
		Logger:   logger,
		reply:    make([]byte, 0, 160),
	}
}

// Dirty reports whether there are unsaved changes.
func (h *Handler) Dirty() bool { return h.dirty }

// Feed consumes one byte of serial input and runs the command when a line
// is complete.
func (h *Handler) Feed(b byte) {
	switch b {
	case '\r', '\n':
		if h.overflow {
			h.overflow = false
			h.n = 0
			h.write(append(h.reply[:0], "err line too long\r\n"...))
			return
		}
		if h.n > 0 {
			line := string(h.line[:h.n])
			h.n = 0
			h.Exec(line)
		}
	case 0x08, 0x7F: // backspace, delete
		if h.n > 0 {
			h.n--
		}
	default:
		if h.n == len(h.line) {
			h.overflow = true
			return
		}
		h.line[h.n] = b
		h.n++
	}
}

// Exec runs one command line and writes its reply.
func (h *Handler) Exec(line string) {
	args, err := shlex.Split(line)
	if err != nil {
		h.fail(err)
		return
	}
	if len(args) == 0 {
		return
	}

	r := append(h.reply[:0], "ok"...)
	switch args[0] {
	case "help":
		r = append(r, " commands: help get set reset save; keys:"...)
		for _, k := range config.Keys {
			r = append(r, ' ')
			r = append(r, k...)
		}
	case "get":
		keys := config.Keys
		if len(args) > 2 {
			h.fail(errUsage)
			return
		}
		if len(args) == 2 {
			keys = args[1:]
		}
		for _, k := range keys {
			r = append(r, ' ')
			r = append(r, k...)
			r = append(r, '=')
			if r, err = h.Settings.AppendValue(r, k); err != nil {
				h.fail(errors.New(k + ": " + err.Error()))
				return
			}
		}
	case "set":
		if len(args) != 3 {
			h.fail(errUsage)
			return
		}
		if err := h.Settings.Set(args[1], args[2]); err != nil {
			h.fail(errors.New(args[1] + ": " + err.Error()))
			return
		}
		h.dirty = true
		r = append(r, ' ')
		r = append(r, args[1]...)
		r = append(r, '=')
		r, _ = h.Settings.AppendValue(r, args[1])
	case "reset":
		h.Settings = config.Default()
		h.dirty = true
		r = append(r, " defaults restored, save to keep"...)
	case "save":
		if h.Store == nil {
			h.fail(errors.New("no storage"))
			return
		}
		if err := h.Store.SaveSettings(&h.Settings); err != nil {
			h.Logger.Error("console:save-failed", slog.Any("reason", err))
			h.fail(err)
			return
		}
		h.dirty = false
		h.Logger.Info("console:saved")
		r = append(r, " saved, reboot to apply"...)
	default:
		h.fail(errors.New("unknown command " + args[0]))
		return
	}
	h.write(append(r, "\r\n"...))
}

func (h *Handler) fail(err error) {
	r := append(h.reply[:0], "err "...)
	r = append(r, err.Error()...)
	h.write(append(r, "\r\n"...))
}

func (h *Handler) write(b []byte) {
	h.reply = b[:0]
	if h.Out == nil {
		return
	}
	if _, err := h.Out.Write(b); err != nil {
		h.Logger.Warn("console:write-failed", slog.Any("reason", err))
	}
}
