package espsimulator

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectTimeout is returned when the broker does not complete the
	// MQTT handshake within MQTT.ConnectTimeout
	ErrConnectTimeout = errors.New("timed out waiting for broker to accept connection")
	// ErrPublishTimeout is returned when the broker does not complete a
	// publish within Publish.Timeout
	ErrPublishTimeout = errors.New("timed out waiting for broker to acknowledge publish")
	// ErrNotConnected is returned when publishing without a session
	ErrNotConnected = errors.New("not connected to broker")
)

// ConnectError reports a failure to open the broker session
type ConnectError struct {
	Broker string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Broker, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// PublishError reports a failed publish on an open session
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %q: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
