// Package scenario describes scripted port readings for the simulator and
// plays them through a real dashboard.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
)

// Port is one port's reading in a frame.
type Port struct {
	Voltage float32 `yaml:"voltage" mapstructure:"voltage"`
	Current float32 `yaml:"current" mapstructure:"current"`
	Power   float32 `yaml:"power" mapstructure:"power"`
}

// Frame is one poll of all ports. Missing ports read zero.
type Frame struct {
	Ports []Port `yaml:"ports" mapstructure:"ports"`
}

// Scenario is a sequence of frames, optionally repeated.
type Scenario struct {
	ClearEvery uint32  `yaml:"clear_every" mapstructure:"clear_every"`
	Repeat     int     `yaml:"repeat" mapstructure:"repeat"`
	Frames     []Frame `yaml:"frames" mapstructure:"frames"`
}

var (
	ErrNoFrames     = errors.New("scenario has no frames")
	ErrTooManyPorts = fmt.Errorf("a frame lists more than %d ports", dashboard.Channels)
	ErrRepeat       = errors.New("repeat must be at least 1")
)

// Load reads a scenario file. The format follows the file extension
// (.yaml, .yml, .json, .toml).
func Load(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("clear_every", dashboard.DefaultClearEvery)
	v.SetDefault("repeat", 1)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("scenario %s not found, run 'dashsim init' to create one: %w", path, err)
		}
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate reports the first structural problem in s.
func (s *Scenario) Validate() error {
	if len(s.Frames) == 0 {
		return ErrNoFrames
	}
	if s.Repeat < 1 {
		return ErrRepeat
	}
	for i, f := range s.Frames {
		if len(f.Ports) > dashboard.Channels {
			return fmt.Errorf("frame %d: %w", i, ErrTooManyPorts)
		}
	}
	return nil
}

// Readings converts a frame to the dashboard's fixed port array.
func (f Frame) Readings() [dashboard.Channels]dashboard.Reading {
	var out [dashboard.Channels]dashboard.Reading
	for i, p := range f.Ports {
		if i == dashboard.Channels {
			break
		}
		out[i] = dashboard.Reading{Voltage: p.Voltage, Current: p.Current, Power: p.Power}
	}
	return out
}

// Template returns the scenario written by 'dashsim init': a phone charging
// on port 1, an idle port 2 and a reverse-fed port 3.
func Template() Scenario {
	return Scenario{
		ClearEvery: dashboard.DefaultClearEvery,
		Repeat:     1,
		Frames: []Frame{
			{Ports: []Port{
				{Voltage: 5.08, Current: 0.52, Power: 2.64},
				{Voltage: 0.01, Current: 0, Power: 0},
				{Voltage: -5.02, Current: -0.31, Power: 1.55},
			}},
			{Ports: []Port{
				{Voltage: 5.04, Current: 1.21, Power: 6.09},
				{Voltage: 5.11, Current: 0.02, Power: 0.1},
				{Voltage: -5.01, Current: -0.33, Power: 1.65},
			}},
			{Ports: []Port{
				{Voltage: 9.02, Current: 2.03, Power: 18.31},
				{Voltage: 5.1, Current: 0.45, Power: 2.29},
				{Voltage: 0, Current: 0, Power: 0},
			}},
		},
	}
}

// WriteYAML encodes s with a two-space indent.
func (s Scenario) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// Stats summarizes a playback.
type Stats struct {
	Frames     int
	DrawErrors int
	LastErr    error
}

// Play runs every frame, Repeat times, through a fresh dashboard drawing on
// dev. Draw errors are counted, not fatal, matching the firmware loop.
// onFrame, when not nil, is called after every frame with n counting from
// zero across repeats.
func Play(s *Scenario, dev dashboard.Device, onFrame func(n int, err error)) (*dashboard.Dashboard, Stats) {
	d := dashboard.New(dashboard.Options{ClearEvery: s.ClearEvery})
	var st Stats
	for r := 0; r < s.Repeat; r++ {
		for _, f := range s.Frames {
			d.Update(f.Readings())
			err := d.Draw(dev)
			if err != nil {
				st.DrawErrors++
				st.LastErr = err
			}
			if onFrame != nil {
				onFrame(st.Frames, err)
			}
			st.Frames++
		}
	}
	return d, st
}
