//go:build tinygo

// Command hubmonitor is the Pico W firmware for the three-port USB hub power
// monitor: three INA260 monitors on I2C0 and a 160x40 ST7735 TFT on SPI0.
package main

import (
	"log/slog"
	"machine"
	"time"

	"tinygo.org/x/drivers/ina260"
	"tinygo.org/x/drivers/st7735"

	"github.com/harveysanders/hubmonitor/hubmonitor/banner"
	"github.com/harveysanders/hubmonitor/hubmonitor/config"
	"github.com/harveysanders/hubmonitor/hubmonitor/console"
	"github.com/harveysanders/hubmonitor/hubmonitor/dashboard"
	"github.com/harveysanders/hubmonitor/hubmonitor/meter"
	"github.com/harveysanders/hubmonitor/hubmonitor/mqtt"
	"github.com/harveysanders/hubmonitor/hubmonitor/panel"
	"github.com/harveysanders/hubmonitor/hubmonitor/storage"
	"github.com/harveysanders/hubmonitor/hubmonitor/wifi"
)

// Set with -ldflags "-X main.brokerAddr=host:port".
var brokerAddr = "10.0.0.9:1883"

const (
	spiFrequency  = 16_000_000
	bootScreenFor = 10 * time.Second
)

func main() {
	start := time.Now()
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	debugLED := machine.GP21
	debugLED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: spiFrequency,
		SCK:       machine.GP18,
		SDO:       machine.GP19,
	})
	if err != nil {
		printErrForever(logger, "configure SPI", slog.Any("reason", err))
	}
	display := st7735.New(machine.SPI0, machine.GP20, machine.GP16, machine.GP17, machine.GP22)
	display.Configure(st7735.Config{
		Width:    dashboard.ScreenHeight,
		Height:   dashboard.ScreenWidth,
		Rotation: st7735.ROTATION_90,
	})
	tft := panel.NewTFT(&display)

	if err := tft.Stripes(panel.TestPattern); err != nil {
		logger.Error("display:test-pattern-failed", slog.Any("reason", err))
	}
	time.Sleep(time.Second)

	screen := banner.New(&display, nil, logger)
	settings := loadSettings(logger)
	if err := screen.Show(banner.Message{Line1: []byte("HUB MONITOR"), Line2: []byte(mgr.Status())}); err != nil {
		logger.Error("display:banner-failed", slog.Any("reason", err))
	}

	err = machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		printErrForever(logger, "configure I2C", slog.Any("reason", err))
	}
	bank := meter.NewBank(logger, monitors(settings, logger))

	samples := make(chan mqtt.Sample, 10)
	telemetry := settings.Telemetry() && wifi.Configured()
	if telemetry {
		status := make(chan banner.Message, 4)
		screen = banner.New(&display, status, logger)
		go startTelemetry(logger, status, samples)
		screen.Run(bootScreenFor)
	}

	var saver console.Saver
	if mgr != nil {
		saver = mgr
	}
	shell := console.New(settings, saver, machine.Serial, logger)
	dash := dashboard.New(settings.Options())
	frameInterval := time.Duration(settings.FrameIntervalMs) * time.Millisecond
	logger.Info("dashboard:start",
		slog.Int("clearEvery", int(settings.ClearEvery)),
		slog.Duration("frame", frameInterval),
	)

	led := false
	for {
		for machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			shell.Feed(b)
		}

		readings := bank.Read()
		dash.Update(readings)
		if err := dash.Draw(tft); err != nil {
			logger.Error("dashboard:draw-failed", slog.Any("reason", err))
		}

		if telemetry {
			mqtt.Offer(samples, mqtt.Sample{
				Ports:     readings,
				Frame:     dash.Draws(),
				SinceBoot: time.Since(start),
			})
		}

		led = !led
		debugLED.Set(led)
		time.Sleep(frameInterval)
	}
}

// mgr is nil when flash could not be mounted; the console then refuses save.
var mgr *storage.Manager

func loadSettings(logger *slog.Logger) config.Settings {
	m, err := storage.New(machine.Flash, true, logger)
	if err != nil {
		logger.Error("storage:unavailable", slog.Any("reason", err))
		return config.Default()
	}
	mgr = m
	s := m.Load()
	logger.Info("storage:loaded",
		slog.Int("clearEvery", int(s.ClearEvery)),
		slog.Bool("telemetry", s.Telemetry()),
	)
	return s
}

// monitors configures one INA260 per enabled address. Absent monitors stay
// in the bank so the port recovers once the monitor answers.
func monitors(s config.Settings, logger *slog.Logger) [dashboard.Channels]meter.Device {
	var devs [dashboard.Channels]meter.Device
	for i, addr := range s.Addresses {
		if addr == 0 {
			continue
		}
		dev := ina260.New(machine.I2C0)
		dev.Address = uint16(addr)
		dev.Configure(ina260.Config{
			AverageMode:     ina260.AVGMODE_16,
			VoltConvTime:    ina260.CONVTIME_1100USEC,
			CurrentConvTime: ina260.CONVTIME_1100USEC,
			Mode:            ina260.MODE_CONTINUOUS | ina260.MODE_VOLTAGE | ina260.MODE_CURRENT,
		})
		if !dev.Connected() {
			logger.Warn("meter:not-found", slog.Int("port", i+1), slog.Int("addr", int(addr)))
		}
		devs[i] = &dev
	}
	return devs
}

func startTelemetry(logger *slog.Logger, status chan<- banner.Message, samples <-chan mqtt.Sample) {
	stack, err := wifi.Join(wifi.Config{
		Hostname:    "hubmonitor",
		MaxTCPConns: 1,
		Logger:      logger,
		Status:      status,
	})
	if err != nil {
		logger.Error("wifi:join-failed", slog.Any("reason", err))
		return
	}
	go stack.Loop()

	if _, err := stack.DHCP(wifi.StaticAddr()); err != nil {
		logger.Error("wifi:dhcp-failed", slog.Any("reason", err))
		return
	}

	c := mqtt.Client{
		ID:                "hubmonitor",
		Timeout:           5 * time.Second,
		TCPBufSize:        2030, // MTU - ethhdr - iphdr - tcphdr
		Logger:            logger,
		HeartbeatInterval: 10 * time.Second,
	}
	if err := c.ConnectAndPublish(stack.Net(), brokerAddr, samples, status); err != nil {
		logger.Error("mqtt:stopped", slog.Any("reason", err))
	}
}

// printErrForever logs msg once a second so it is seen even when the serial
// monitor attaches late. It blocks forever.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
