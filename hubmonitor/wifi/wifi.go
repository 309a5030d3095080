//go:build tinygo

// Package wifi brings up the Pico W radio and an lneto network stack for
// telemetry. Credentials are set at build time:
//
//	tinygo flash -target=pico-w -ldflags="-X 'github.com/harveysanders/hubmonitor/hubmonitor/wifi.ssid=home' -X 'github.com/harveysanders/hubmonitor/hubmonitor/wifi.pass=secret'" ./hubmonitor
//
// The code is adapted from the examples in the soypat/cyw43439 repository:
// https://github.com/soypat/cyw43439/tree/main/examples/common
//
// Original author: Patricio Whittingslow (soypat)
package wifi

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/x/xnet"

	"github.com/harveysanders/hubmonitor/hubmonitor/banner"
)

const mtu = cyw43439.MTU

var (
	ssid     string
	pass     string
	staticIP string
)

// Configured reports whether credentials were linked into the firmware.
func Configured() bool { return ssid != "" }

// StaticAddr returns the fallback address linked in as wifi.staticIP, or the
// zero Addr when none was set or it does not parse.
func StaticAddr() netip.Addr {
	addr, err := netip.ParseAddr(staticIP)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

// Config configures the radio and stack.
type Config struct {
	// Hostname is sent with DHCP requests.
	Hostname string
	// MaxTCPConns is the number of TCP connections the stack can hold.
	MaxTCPConns int
	Logger      *slog.Logger
	// Status receives bring-up progress for the boot screen. May be nil.
	Status chan<- banner.Message
}

// Stack owns the CYW43439 device and the lneto stack running on it.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	status  chan<- banner.Message
	sendbuf []byte
}

// Join initializes the radio and joins the network, retrying every five
// seconds until the access point accepts us.
func Join(cfg Config) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	if !Configured() {
		return nil, errors.New("no ssid linked into firmware")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)

	banner.Send(cfg.Status, "WIFI", "RADIO INIT")
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init:" + err.Error())
	}
	logger.Info("wifi:init", slog.Duration("duration", time.Since(start)))

	banner.Send(cfg.Status, "WIFI JOIN", ssid)
	for {
		err := dev.JoinWPA2(ssid, pass)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.String("ssid", ssid), slog.String("err", err.Error()))
		time.Sleep(5 * time.Second)
	}

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	st := &Stack{
		dev:     dev,
		log:     logger,
		status:  cfg.Status,
		sendbuf: make([]byte, mtu),
	}
	maxTCP := max(cfg.MaxTCPConns, 1)
	err = st.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     maxTCP,
		RandSeed:        time.Since(start).Nanoseconds(),
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}
	dev.RecvEthHandle(func(pkt []byte) error {
		return st.s.Demux(pkt, 0)
	})
	return st, nil
}

// DHCP requests an address. The packet loop must already be running.
// When DHCP does not complete and static is valid, static is assigned.
func (s *Stack) DHCP(static netip.Addr) (netip.Addr, error) {
	requested := [4]byte{}
	if static.Is4() {
		requested = static.As4()
	}

	rstack := s.s.StackRetrying(50 * time.Millisecond)
	banner.Send(s.status, "DHCP", "REQUESTING")

	results, err := rstack.DoDHCPv4(requested, 3*time.Second, 3)
	if err != nil {
		if static.Is4() && !static.IsUnspecified() {
			s.log.Warn("dhcp:static-fallback", slog.String("ip", static.String()), slog.String("err", err.Error()))
			s.s.SetIPAddr(static)
			banner.Send(s.status, "STATIC IP", static.String())
			return static, nil
		}
		banner.Send(s.status, "DHCP", "FAILED")
		return netip.Addr{}, errors.New("dhcp:" + err.Error())
	}
	if err := s.s.AssimilateDHCPResults(results); err != nil {
		return netip.Addr{}, errors.New("assimilate dhcp:" + err.Error())
	}

	gw, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return netip.Addr{}, errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gw)

	s.log.Info("dhcp:complete",
		slog.String("ip", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	banner.Send(s.status, "IP", results.AssignedAddr.String())
	return results.AssignedAddr, nil
}

// Loop moves packets between the radio and the stack forever.
// Run it in its own goroutine before calling DHCP.
func (s *Stack) Loop() {
	for {
		send, recv, _ := s.recvAndSend()
		if send == 0 && recv == 0 {
			runtime.Gosched()
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (s *Stack) recvAndSend() (send, recv int, err error) {
	gotPacket, errRecv := s.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("wifi:poll", slog.String("err", errRecv.Error()))
	}

	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("wifi:encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
	} else {
		err = errRecv
	}
	if send == 0 {
		return send, recv, err
	}

	if err = s.dev.SendEth(s.sendbuf[:send]); err != nil {
		s.log.Error("wifi:send", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// Net returns the lneto stack for dialing and DNS.
func (s *Stack) Net() *xnet.StackAsync {
	return &s.s
}
