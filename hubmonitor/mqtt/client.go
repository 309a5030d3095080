// Package mqtt publishes port readings to an MQTT broker over an lneto TCP
// connection.
package mqtt

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/harveysanders/hubmonitor/hubmonitor/banner"
)

// DefaultTopic is used when Client.Topic is empty.
const DefaultTopic = "hubmonitor/ports"

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

type Client struct {
	ID                string
	Topic             string
	Timeout           time.Duration
	TCPBufSize        int
	Logger            *slog.Logger
	HeartbeatInterval time.Duration
	Username          string // Broker username (optional)
	Password          string // Broker password (optional, requires Username)
}

// ConnectAndPublish resolves addr, connects to the broker and publishes
// every Sample received on samples. Lost connections are re-dialed forever;
// it only returns on configuration errors.
func (c *Client) ConnectAndPublish(
	stack *xnet.StackAsync,
	addr string,
	samples <-chan Sample,
	status chan<- banner.Message,
) error {
	const pollTime = 5 * time.Millisecond
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	host, port, err := splitHostPort(addr)
	if err != nil {
		return errors.New("broker address " + addr + ": " + err.Error())
	}

	rstack := stack.StackRetrying(pollTime)

	brokerIP, err := netip.ParseAddr(host)
	if err != nil {
		c.Logger.Info("dns:resolving", slog.String("host", host))
		addrs, err := rstack.DoLookupIP(host, 5*time.Second, 3)
		if err != nil {
			return errors.New("dns lookup for " + host + ": " + err.Error())
		}
		if len(addrs) == 0 {
			return errors.New("dns lookup for " + host + ": no addresses returned")
		}
		brokerIP = addrs[0]
	}
	serverAddr := netip.AddrPortFrom(brokerIP, port)
	c.Logger.Info("mqtt:broker", slog.String("addr", serverAddr.String()))

	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(_ mqtt.Header, varPub mqtt.VariablesPublish, _ io.Reader) error {
			c.Logger.Info("mqtt:received", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	}
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}
	pubVar := mqtt.VariablesPublish{TopicName: []byte(topic)}

	client := mqtt.NewClient(cfg)

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, c.TCPBufSize),
		TxBuf:             make([]byte, c.TCPBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	closeConn := func(reason string) {
		c.Logger.Error("tcp:closing", slog.String("reason", reason))
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		conn.Abort()
	}

	heartbeat := time.NewTicker(c.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		localPort := uint16(stack.Prand32()>>17) + 1024
		c.Logger.Info("tcp:dialing", slog.Uint64("localPort", uint64(localPort)))
		banner.Send(status, "MQTT", "TCP CONNECT")
		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			c.Logger.Error("tcp:dial-failed", slog.String("err", err.Error()))
			closeConn("dial failed")
			time.Sleep(2 * time.Second)
			continue
		}

		conn.SetDeadline(time.Now().Add(c.Timeout))
		err = client.StartConnect(&conn, &varconn)
		if err != nil {
			c.Logger.Error("mqtt:start-connect-failed", slog.String("reason", err.Error()))
			closeConn("connect failed")
			continue
		}
		for retries := 50; retries > 0 && !client.IsConnected(); retries-- {
			time.Sleep(100 * time.Millisecond)
			if err := client.HandleNext(); err != nil {
				c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
		}
		if !client.IsConnected() {
			c.Logger.Error("mqtt:connect-failed", slog.Any("reason", client.Err()))
			banner.Send(status, "MQTT", "TIMED OUT")
			closeConn("connect timed out")
			continue
		}
		c.Logger.Info("mqtt:connected")
		banner.Send(status, "MQTT", "CONNECTED")

		for client.IsConnected() {
			select {
			case s := <-samples:
				payload, err := s.MarshalJSON()
				if err != nil {
					c.Logger.Error("mqtt:marshal-failed", slog.Any("reason", err))
					continue
				}
				conn.SetDeadline(time.Now().Add(c.Timeout))
				pubVar.PacketIdentifier = uint16(stack.Prand32())
				if err := client.PublishPayload(pubFlags, pubVar, payload); err != nil {
					c.Logger.Error("mqtt:publish-failed", slog.Any("reason", err))
					continue
				}
				c.Logger.Debug("mqtt:published", slog.Uint64("frame", uint64(s.Frame)))
			case <-heartbeat.C:
				// Keep the session alive when no samples arrive.
				conn.SetDeadline(time.Now().Add(c.Timeout))
				if err := client.HandleNext(); err != nil {
					c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
				}
			default:
				// TinyGo schedules cooperatively on one core.
				runtime.Gosched()
			}
		}

		c.Logger.Error("mqtt:disconnected", slog.Any("reason", client.Err()))
		banner.Send(status, "MQTT", "RECONNECTING")
		closeConn("disconnected")
		runtime.Gosched()
	}
}
