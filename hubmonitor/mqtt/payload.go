package mqtt

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
)

// Sample is one frame's worth of readings handed to the publisher.
type Sample struct {
	Ports     [dashboard.Channels]dashboard.Reading
	Frame     uint32        // Dashboard draw count when the sample was taken.
	SinceBoot time.Duration // Time since boot.
}

type portJSON struct {
	V float32 `json:"v"`
	A float32 `json:"a"`
	W float32 `json:"w"`
}

type sampleJSON struct {
	Ports       [dashboard.Channels]portJSON `json:"ports"`
	Frame       uint32                       `json:"frame"`
	SinceBootNS int64                        `json:"sinceBootNS"`
}

// MarshalJSON encodes the sample as
// {"ports":[{"v":..,"a":..,"w":..},...],"frame":n,"sinceBootNS":n}.
func (s Sample) MarshalJSON() ([]byte, error) {
	var out sampleJSON
	for i, r := range s.Ports {
		out.Ports[i] = portJSON{V: r.Voltage, A: r.Current, W: r.Power}
	}
	out.Frame = s.Frame
	out.SinceBootNS = s.SinceBoot.Nanoseconds()
	return json.Marshal(out)
}

// Offer queues s for publishing without blocking. It reports false when the
// channel is full and the sample was dropped.
func Offer(ch chan<- Sample, s Sample) bool {
	select {
	case ch <- s:
		return true
	default:
		return false
	}
}

// splitHostPort splits "host:port" at the last colon. Brackets around an
// IPv6 host are removed.
func splitHostPort(addr string) (host string, port uint16, err error) {
	colon := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			colon = i
			break
		}
	}
	if colon == -1 {
		return "", 0, errors.New("missing port in address")
	}
	host = addr[:colon]
	if len(host) > 2 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	p, err := strconv.ParseUint(addr[colon+1:], 10, 16)
	if err != nil || p == 0 {
		return "", 0, errors.New("invalid port in address")
	}
	return host, uint16(p), nil
}
