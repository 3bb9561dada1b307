package espsimulator

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	mqttclient "github.com/eclipse/paho.mqtt.golang"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/require"
	config "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Config"
)

// receivedPublish is a PUBLISH packet as seen by the broker
type receivedPublish struct {
	Topic   string
	Payload string
	QoS     byte
	Retain  bool
	At      time.Time
}

// recordingHook captures every PUBLISH the broker receives from clients
type recordingHook struct {
	mqtt.HookBase
	mu        sync.Mutex
	publishes []receivedPublish
}

func (h *recordingHook) ID() string {
	return "recording-hook"
}

func (h *recordingHook) Provides(b byte) bool {
	return bytes.Contains([]byte{mqtt.OnPublish}, []byte{b})
}

func (h *recordingHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishes = append(h.publishes, receivedPublish{
		Topic:   pk.TopicName,
		Payload: string(pk.Payload),
		QoS:     pk.FixedHeader.Qos,
		Retain:  pk.FixedHeader.Retain,
		At:      time.Now(),
	})
	return pk, nil
}

func (h *recordingHook) Publishes() []receivedPublish {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]receivedPublish(nil), h.publishes...)
}

// rejectHook refuses every CONNECT
type rejectHook struct {
	mqtt.HookBase
}

func (h *rejectHook) ID() string {
	return "reject-hook"
}

func (h *rejectHook) Provides(b byte) bool {
	return bytes.Contains([]byte{mqtt.OnConnectAuthenticate}, []byte{b})
}

func (h *rejectHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	return false
}

// getFreePort returns a port nothing is listening on
func getFreePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// testBroker is an in-process mochi broker bound to a loopback port
type testBroker struct {
	server *mqtt.Server
	once   sync.Once
}

// Close stops the broker; mochi panics on a second Close
func (b *testBroker) Close() {
	b.once.Do(func() {
		_ = b.server.Close()
	})
}

// startBroker runs an in-process broker that accepts every client.
// Extra hooks are added after the allow-all auth hook.
func startBroker(t *testing.T, hooks ...mqtt.Hook) (*testBroker, int) {
	return startBrokerWithAuth(t, new(auth.AllowHook), hooks...)
}

func startBrokerWithAuth(t *testing.T, authHook mqtt.Hook, hooks ...mqtt.Hook) (*testBroker, int) {
	port := getFreePort(t)

	server := mqtt.New(&mqtt.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, server.AddHook(authHook, nil))
	for _, h := range hooks {
		require.NoError(t, server.AddHook(h, nil))
	}

	listener := listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("t-%d", port),
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})
	require.NoError(t, server.AddListener(listener))

	go func() {
		_ = server.Serve()
	}()

	b := &testBroker{server: server}
	t.Cleanup(b.Close)

	return b, port
}

// startSilentBroker accepts TCP connections and answers CONNECT with a
// successful CONNACK when ack is true, then never replies again.
func startSilentBroker(t *testing.T, ack bool) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()

			go func(c net.Conn) {
				if ack {
					if err := readPacket(c); err != nil {
						return
					}
					if _, err := c.Write([]byte{0x20, 0x02, 0x00, 0x00}); err != nil {
						return
					}
				}
				_, _ = io.Copy(io.Discard, c)
			}(conn)
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	return ln.Addr().(*net.TCPAddr).Port
}

// readPacket consumes one MQTT control packet from r
func readPacket(r io.Reader) error {
	header := make([]byte, 1)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}

	remaining, multiplier := 0, 1
	for {
		b := make([]byte, 1)
		if _, err := io.ReadFull(r, b); err != nil {
			return err
		}
		remaining += int(b[0]&0x7f) * multiplier
		if b[0]&0x80 == 0 {
			break
		}
		multiplier *= 128
	}

	_, err := io.CopyN(io.Discard, r, int64(remaining))
	return err
}

// newSubscriber connects a plain paho client to the test broker
func newSubscriber(t *testing.T, port int, clientID string) mqttclient.Client {
	opts := mqttclient.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://127.0.0.1:%d", port))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(5 * time.Second)

	client := mqttclient.NewClient(opts)
	token := client.Connect()
	require.True(t, token.WaitTimeout(5*time.Second), "subscriber connect timeout")
	require.NoError(t, token.Error())

	t.Cleanup(func() {
		client.Disconnect(250)
	})
	return client
}

func testConfig(port int) config.SimulatorConfig {
	return config.SimulatorConfig{
		MQTT: config.MQTTConfig{
			BrokerHost:     "127.0.0.1",
			BrokerPort:     port,
			ClientID:       "esp-sim-test",
			KeepAlive:      30 * time.Second,
			PingTimeout:    10 * time.Second,
			ConnectTimeout: 2 * time.Second,
		},
		Publish: config.PublishConfig{
			Topic:           "MyTopic",
			QoS:             2,
			Retain:          true,
			Interval:        50 * time.Millisecond,
			Timeout:         2 * time.Second,
			TimestampLayout: config.DefaultTimestampLayout,
			TempMin:         35,
			TempMax:         42,
		},
	}
}
