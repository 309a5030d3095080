// Package config defines the persisted monitor settings.
// Settings is a fixed-size record so it can be encoded without allocation
// and stored as a single small file on flash.
package config

import (
	"encoding/binary"
	"errors"

	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
)

// CurrentVersion is the settings format version.
// Firmware that finds a different version on flash wipes the stored copy.
const CurrentVersion uint8 = 1

// Size is the encoded length of Settings.
const Size = 16

// Flag bits.
const (
	FlagTelemetry uint8 = 1 << iota // publish readings over MQTT
)

// Default INA260 addresses, one per port (A0/A1 strapping).
const (
	DefaultAddr1 uint8 = 0x40
	DefaultAddr2 uint8 = 0x41
	DefaultAddr3 uint8 = 0x44
)

var (
	ErrInvalidSize     = errors.New("invalid settings size")
	ErrChecksum        = errors.New("settings checksum mismatch")
	ErrClearEvery      = errors.New("clear_every must be at least 1")
	ErrFrameInterval   = errors.New("frame_ms must be between 10 and 10000")
	ErrAddress         = errors.New("monitor address must be 0 or 0x40-0x4f")
	ErrDuplicateAddr   = errors.New("monitor addresses must be distinct")
	ErrUnknownKey      = errors.New("unknown key")
	ErrInvalidValue    = errors.New("invalid value")
	ErrVersionMismatch = errors.New("settings version mismatch")
)

// Settings is the monitor configuration.
// Total size: 16 bytes
// Layout:
//
//	[0]:     Version (uint8)
//	[1-2]:   ClearEvery (uint16)
//	[3-4]:   FrameIntervalMs (uint16)
//	[5-6]:   MinMillivolts (uint16)
//	[7-8]:   MinMilliamps (uint16)
//	[9-10]:  MinMilliwatts (uint16)
//	[11-13]: Addresses ([3]uint8)
//	[14]:    Flags (uint8)
//	[15]:    Checksum (xor of bytes 0-14)
type Settings struct {
	Version         uint8    // Settings format version
	ClearEvery      uint16   // Frames between full-screen clears
	FrameIntervalMs uint16   // Sleep between frames
	MinMillivolts   uint16   // Idle threshold for |voltage|
	MinMilliamps    uint16   // Idle threshold for |current|
	MinMilliwatts   uint16   // Idle threshold for power
	Addresses       [3]uint8 // INA260 I2C address per port, 0 disables the port
	Flags           uint8    // Feature flags
}

// Default returns the factory settings.
func Default() Settings {
	return Settings{
		Version:         CurrentVersion,
		ClearEvery:      dashboard.DefaultClearEvery,
		FrameIntervalMs: 100,
		MinMillivolts:   2000,
		MinMilliamps:    50,
		MinMilliwatts:   50,
		Addresses:       [3]uint8{DefaultAddr1, DefaultAddr2, DefaultAddr3},
	}
}

// Validate reports the first setting that would misconfigure the monitor.
func (s *Settings) Validate() error {
	if s.ClearEvery == 0 {
		return ErrClearEvery
	}
	if s.FrameIntervalMs < 10 || s.FrameIntervalMs > 10000 {
		return ErrFrameInterval
	}
	for i, a := range s.Addresses {
		if a == 0 {
			continue
		}
		if a < 0x40 || a > 0x4F {
			return ErrAddress
		}
		for _, b := range s.Addresses[:i] {
			if a == b {
				return ErrDuplicateAddr
			}
		}
	}
	return nil
}

// Telemetry reports whether MQTT publishing is enabled.
func (s *Settings) Telemetry() bool { return s.Flags&FlagTelemetry != 0 }

// Options converts the settings to dashboard options.
func (s *Settings) Options() dashboard.Options {
	t := s.Thresholds()
	return dashboard.Options{
		ClearEvery: uint32(s.ClearEvery),
		Thresholds: &t,
	}
}

// Thresholds converts the integer milli-unit thresholds to volts, amps and watts.
func (s *Settings) Thresholds() dashboard.Thresholds {
	return dashboard.Thresholds{
		Voltage: float32(s.MinMillivolts) / 1000,
		Current: float32(s.MinMilliamps) / 1000,
		Power:   float32(s.MinMilliwatts) / 1000,
	}
}

// Encode writes the record into buf.
func (s *Settings) Encode(buf *[Size]byte) {
	buf[0] = s.Version
	binary.LittleEndian.PutUint16(buf[1:], s.ClearEvery)
	binary.LittleEndian.PutUint16(buf[3:], s.FrameIntervalMs)
	binary.LittleEndian.PutUint16(buf[5:], s.MinMillivolts)
	binary.LittleEndian.PutUint16(buf[7:], s.MinMilliamps)
	binary.LittleEndian.PutUint16(buf[9:], s.MinMilliwatts)
	copy(buf[11:14], s.Addresses[:])
	buf[14] = s.Flags
	buf[15] = checksum(buf[:15])
}

// MarshalBinary implements encoding.BinaryMarshaler for Settings.
func (s *Settings) MarshalBinary() ([]byte, error) {
	var buf [Size]byte
	s.Encode(&buf)
	return buf[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Settings.
// The version is decoded but not checked; see storage.Manager.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < Size {
		return ErrInvalidSize
	}
	if checksum(data[:15]) != data[15] {
		return ErrChecksum
	}
	s.Version = data[0]
	s.ClearEvery = binary.LittleEndian.Uint16(data[1:])
	s.FrameIntervalMs = binary.LittleEndian.Uint16(data[3:])
	s.MinMillivolts = binary.LittleEndian.Uint16(data[5:])
	s.MinMilliamps = binary.LittleEndian.Uint16(data[7:])
	s.MinMilliwatts = binary.LittleEndian.Uint16(data[9:])
	copy(s.Addresses[:], data[11:14])
	s.Flags = data[14]
	return nil
}

func checksum(b []byte) uint8 {
	var x uint8 = 0xA5
	for _, c := range b {
		x ^= c
	}
	return x
}
