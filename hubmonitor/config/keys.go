package config

import "strconv"

// Keys lists the settings addressable by name, in display order.
var Keys = []string{
	"clear_every",
	"frame_ms",
	"min_mv",
	"min_ma",
	"min_mw",
	"addr1",
	"addr2",
	"addr3",
	"telemetry",
}

// Set parses value into the field named key. The result is validated as a
// whole; on error s is left unchanged.
func (s *Settings) Set(key, value string) error {
	next := *s
	switch key {
	case "clear_every", "frame_ms", "min_mv", "min_ma", "min_mw":
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return ErrInvalidValue
		}
		*next.uint16Field(key) = uint16(n)
	case "addr1", "addr2", "addr3":
		n, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return ErrInvalidValue
		}
		next.Addresses[key[4]-'1'] = uint8(n)
	case "telemetry":
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		if on {
			next.Flags |= FlagTelemetry
		} else {
			next.Flags &^= FlagTelemetry
		}
	default:
		return ErrUnknownKey
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// AppendValue appends the textual value of key to dst.
func (s *Settings) AppendValue(dst []byte, key string) ([]byte, error) {
	switch key {
	case "clear_every", "frame_ms", "min_mv", "min_ma", "min_mw":
		return strconv.AppendUint(dst, uint64(*s.uint16Field(key)), 10), nil
	case "addr1", "addr2", "addr3":
		dst = append(dst, "0x"...)
		return strconv.AppendUint(dst, uint64(s.Addresses[key[4]-'1']), 16), nil
	case "telemetry":
		if s.Telemetry() {
			return append(dst, "on"...), nil
		}
		return append(dst, "off"...), nil
	}
	return dst, ErrUnknownKey
}

func (s *Settings) uint16Field(key string) *uint16 {
	switch key {
	case "clear_every":
		return &s.ClearEvery
	case "frame_ms":
		return &s.FrameIntervalMs
	case "min_mv":
		return &s.MinMillivolts
	case "min_ma":
		return &s.MinMilliamps
	case "min_mw":
		return &s.MinMilliwatts
	}
	return nil
}

func parseSwitch(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, ErrInvalidValue
	}
	return b, nil
}
