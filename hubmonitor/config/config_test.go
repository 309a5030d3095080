package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
)

func TestDefaultMatchesDashboardDefaults(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, CurrentVersion, s.Version)
	assert.False(t, s.Telemetry())

	opts := s.Options()
	assert.Equal(t, uint32(dashboard.DefaultClearEvery), opts.ClearEvery)
	require.NotNil(t, opts.Thresholds)
	assert.InDelta(t, dashboard.DefaultThresholds.Voltage, opts.Thresholds.Voltage, 1e-6)
	assert.InDelta(t, dashboard.DefaultThresholds.Current, opts.Thresholds.Current, 1e-6)
	assert.InDelta(t, dashboard.DefaultThresholds.Power, opts.Thresholds.Power, 1e-6)
}

func TestEncodeLayout(t *testing.T) {
	s := Settings{
		Version:         1,
		ClearEvery:      0x0102,
		FrameIntervalMs: 0x0304,
		MinMillivolts:   0x0506,
		MinMilliamps:    0x0708,
		MinMilliwatts:   0x090A,
		Addresses:       [3]uint8{0x40, 0x41, 0x44},
		Flags:           FlagTelemetry,
	}
	var buf [Size]byte
	s.Encode(&buf)

	want := [Size]byte{
		0x01,
		0x02, 0x01,
		0x04, 0x03,
		0x06, 0x05,
		0x08, 0x07,
		0x0A, 0x09,
		0x40, 0x41, 0x44,
		0x01,
		0,
	}
	want[15] = checksum(want[:15])
	assert.Equal(t, want, buf)

	var got Settings
	require.NoError(t, got.UnmarshalBinary(buf[:]))
	assert.Equal(t, s, got)
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	s := Default()
	data, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, Size)

	var got Settings
	assert.ErrorIs(t, got.UnmarshalBinary(data[:Size-1]), ErrInvalidSize)

	data[3] ^= 0x10
	assert.ErrorIs(t, got.UnmarshalBinary(data), ErrChecksum)
	assert.Equal(t, Settings{}, got, "failed decode leaves the target untouched")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   error
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "zero clear cadence", mutate: func(s *Settings) { s.ClearEvery = 0 }, want: ErrClearEvery},
		{name: "frame too fast", mutate: func(s *Settings) { s.FrameIntervalMs = 9 }, want: ErrFrameInterval},
		{name: "frame too slow", mutate: func(s *Settings) { s.FrameIntervalMs = 10001 }, want: ErrFrameInterval},
		{name: "address outside INA260 range", mutate: func(s *Settings) { s.Addresses[1] = 0x27 }, want: ErrAddress},
		{name: "duplicate address", mutate: func(s *Settings) { s.Addresses[2] = s.Addresses[0] }, want: ErrDuplicateAddr},
		{name: "disabled ports may share zero", mutate: func(s *Settings) { s.Addresses[0], s.Addresses[2] = 0, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			err := s.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(t *testing.T, s Settings)
	}{
		{"clear_every", "250", func(t *testing.T, s Settings) { assert.Equal(t, uint16(250), s.ClearEvery) }},
		{"frame_ms", "50", func(t *testing.T, s Settings) { assert.Equal(t, uint16(50), s.FrameIntervalMs) }},
		{"min_mv", "4500", func(t *testing.T, s Settings) { assert.Equal(t, uint16(4500), s.MinMillivolts) }},
		{"min_ma", "10", func(t *testing.T, s Settings) { assert.Equal(t, uint16(10), s.MinMilliamps) }},
		{"min_mw", "0", func(t *testing.T, s Settings) { assert.Equal(t, uint16(0), s.MinMilliwatts) }},
		{"addr2", "0x45", func(t *testing.T, s Settings) { assert.Equal(t, uint8(0x45), s.Addresses[1]) }},
		{"addr3", "0", func(t *testing.T, s Settings) { assert.Equal(t, uint8(0), s.Addresses[2]) }},
		{"telemetry", "on", func(t *testing.T, s Settings) { assert.True(t, s.Telemetry()) }},
		{"telemetry", "true", func(t *testing.T, s Settings) { assert.True(t, s.Telemetry()) }},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := Default()
			require.NoError(t, s.Set(tt.key, tt.value))
			tt.check(t, s)
		})
	}
}

func TestSetTelemetryOff(t *testing.T) {
	s := Default()
	s.Flags = FlagTelemetry | 0x80
	require.NoError(t, s.Set("telemetry", "off"))
	assert.False(t, s.Telemetry())
	assert.Equal(t, uint8(0x80), s.Flags, "other flag bits survive")
}

func TestSetErrorsLeaveSettingsUnchanged(t *testing.T) {
	tests := []struct {
		key, value string
		want       error
	}{
		{"brightness", "3", ErrUnknownKey},
		{"clear_every", "-1", ErrInvalidValue},
		{"clear_every", "70000", ErrInvalidValue},
		{"clear_every", "0", ErrClearEvery},
		{"frame_ms", "5", ErrFrameInterval},
		{"addr1", "0x41", ErrDuplicateAddr},
		{"addr1", "0x100", ErrInvalidValue},
		{"addr1", "0x20", ErrAddress},
		{"telemetry", "maybe", ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := Default()
			assert.ErrorIs(t, s.Set(tt.key, tt.value), tt.want)
			assert.Equal(t, Default(), s)
		})
	}
}

func TestAppendValue(t *testing.T) {
	s := Default()
	s.Flags = FlagTelemetry
	want := map[string]string{
		"clear_every": "1000",
		"frame_ms":    "100",
		"min_mv":      "2000",
		"min_ma":      "50",
		"min_mw":      "50",
		"addr1":       "0x40",
		"addr2":       "0x41",
		"addr3":       "0x44",
		"telemetry":   "on",
	}
	require.Len(t, Keys, len(want))
	for _, k := range Keys {
		got, err := s.AppendValue(nil, k)
		require.NoError(t, err, k)
		assert.Equal(t, want[k], string(got), k)
	}

	_, err := s.AppendValue(nil, "nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestZeroThresholdsReachDashboard(t *testing.T) {
	s := Default()
	for _, key := range []string{"min_mv", "min_ma", "min_mw"} {
		require.NoError(t, s.Set(key, "0"))
	}
	require.NoError(t, s.Validate())

	d := dashboard.New(s.Options())
	assert.Equal(t, dashboard.Thresholds{}, d.Thresholds())
	assert.False(t, d.Thresholds().Idle(dashboard.Reading{Voltage: 1.5, Current: 1, Power: 1}))
}
