// Package cli implements the dashsim command line: a workstation simulator
// that plays scripted port readings through the firmware's dashboard and
// shows the resulting panel frames.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harveysanders/hubmonitor/dashsim/scenario"
	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
	"github.com/harveysanders/hubmonitor/hubmonitor/panel"
)

// DefaultScenario is the scenario file used when --scenario is not given.
const DefaultScenario = "scenario.yaml"

// Global flags
var (
	scenarioPath string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "dashsim",
	Short: "Preview the hub monitor dashboard on a workstation",
	Long: `Play scripted port readings through the hub monitor dashboard and show
the 160x40 panel it would draw, as a PNG or directly in the terminal.

Examples:
  dashsim init
  dashsim show
  dashsim render -o frame.png --scale 6`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", DefaultScenario, "scenario file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log playback details to stderr")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// playback is a loaded scenario drawn onto an in-memory panel.
type playback struct {
	canvas *panel.Canvas
	dash   *dashboard.Dashboard
	stats  scenario.Stats
}

// play loads the scenario at scenarioPath and runs it. onFrame, when not
// nil, sees the canvas after every frame.
func play(logger *slog.Logger, onFrame func(n int, c *panel.Canvas)) (*playback, error) {
	s, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("scenario:loaded",
		slog.String("path", scenarioPath),
		slog.Int("frames", len(s.Frames)),
		slog.Int("repeat", s.Repeat),
		slog.Int("clearEvery", int(s.ClearEvery)),
	)

	pb := &playback{canvas: panel.NewCanvas(dashboard.ScreenWidth, dashboard.ScreenHeight)}
	pb.dash, pb.stats = scenario.Play(s, pb.canvas, func(n int, err error) {
		if err != nil {
			logger.Error("dashboard:draw-failed", slog.Int("frame", n), slog.Any("reason", err))
		}
		if onFrame != nil {
			onFrame(n, pb.canvas)
		}
	})
	logger.Debug("scenario:played",
		slog.Int("frames", pb.stats.Frames),
		slog.Int("fills", pb.canvas.Fills),
		slog.Int("writes", pb.canvas.Writes),
	)
	return pb, nil
}

func (pb *playback) summary() string {
	return fmt.Sprintf("%d frames, %d clears, %d glyph writes, %d draw errors",
		pb.stats.Frames, pb.canvas.Fills, pb.canvas.Writes, pb.stats.DrawErrors)
}
