package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// SimulatorConfig holds configuration for the ESP temperature simulator
type SimulatorConfig struct {
	Server  ServerConfig  `json:"server"`
	MQTT    MQTTConfig    `json:"mqtt"`
	Publish PublishConfig `json:"publish"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds the health server configuration.
// An empty Port disables the server.
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost     string        `json:"broker_host"`
	BrokerPort     int           `json:"broker_port"`
	ClientID       string        `json:"client_id"`
	KeepAlive      time.Duration `json:"keep_alive"`
	PingTimeout    time.Duration `json:"ping_timeout"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// PublishConfig describes what is published and how often
type PublishConfig struct {
	Topic           string        `json:"topic"`
	QoS             byte          `json:"qos"`
	Retain          bool          `json:"retain"`
	Interval        time.Duration `json:"interval"`
	Timeout         time.Duration `json:"timeout"`
	TimestampLayout string        `json:"timestamp_layout"`
	TempMin         int           `json:"temp_min"`
	TempMax         int           `json:"temp_max"` // exclusive
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

const (
	DefaultBrokerHost      = "192.168.59.24"
	DefaultBrokerPort      = 1889
	DefaultTopic           = "MyTopic"
	DefaultTimestampLayout = "2006-01-02 15:04:05"
)

// LoadSimulatorConfig loads configuration for the simulator from the
// environment, after applying a .env file if one exists.
func LoadSimulatorConfig() (*SimulatorConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	env := &envParser{}
	config := &SimulatorConfig{
		Server: ServerConfig{
			Port:            env.getEnv("SIM_HEALTH_PORT", "9004"),
			ReadTimeout:     env.getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.getDuration("WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: env.getDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		MQTT: MQTTConfig{
			BrokerHost:     env.getEnv("BROKER_HOST", DefaultBrokerHost),
			BrokerPort:     env.getInt("BROKER_PORT", DefaultBrokerPort),
			ClientID:       env.getEnv("MQTT_CLIENT_ID", defaultClientID()),
			KeepAlive:      env.getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout:    env.getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
			ConnectTimeout: env.getDuration("MQTT_CONNECT_TIMEOUT", 10*time.Second),
		},
		Publish: PublishConfig{
			Topic:           env.getEnv("MQTT_TOPIC", DefaultTopic),
			QoS:             env.getQoS("MQTT_QOS", 2),
			Retain:          env.getBool("MQTT_RETAIN", true),
			Interval:        env.getDuration("PUBLISH_INTERVAL", 2*time.Second),
			Timeout:         env.getDuration("PUBLISH_TIMEOUT", 10*time.Second),
			TimestampLayout: env.getEnv("TIMESTAMP_LAYOUT", DefaultTimestampLayout),
			TempMin:         env.getInt("TEMP_MIN", 35),
			TempMax:         env.getInt("TEMP_MAX", 42),
		},
		Logging: LoggingConfig{
			Level:        env.getEnv("LOG_LEVEL", "info"),
			Format:       env.getEnv("LOG_FORMAT", "text"),
			Output:       env.getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: env.getBool("LOG_ENABLE_CALLER", false),
		},
	}
	if err := env.err(); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *SimulatorConfig) Validate() error {
	if c.MQTT.BrokerHost == "" {
		return fmt.Errorf("BROKER_HOST is required")
	}
	if c.MQTT.BrokerPort < 1 || c.MQTT.BrokerPort > 65535 {
		return fmt.Errorf("BROKER_PORT must be between 1 and 65535, got %d", c.MQTT.BrokerPort)
	}
	if c.MQTT.ConnectTimeout <= 0 {
		return fmt.Errorf("MQTT_CONNECT_TIMEOUT must be positive")
	}
	if c.Publish.Topic == "" {
		return fmt.Errorf("MQTT_TOPIC is required")
	}
	if strings.ContainsAny(c.Publish.Topic, "+#") {
		return fmt.Errorf("MQTT_TOPIC %q must not contain wildcards", c.Publish.Topic)
	}
	if c.Publish.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.Publish.QoS)
	}
	if c.Publish.Interval <= 0 {
		return fmt.Errorf("PUBLISH_INTERVAL must be positive")
	}
	if c.Publish.Timeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT must be positive")
	}
	if c.Publish.TempMin >= c.Publish.TempMax {
		return fmt.Errorf("TEMP_MIN (%d) must be lower than TEMP_MAX (%d)", c.Publish.TempMin, c.Publish.TempMax)
	}
	return nil
}

// BrokerURL returns the MQTT broker URL
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.BrokerHost, c.BrokerPort)
}

// loadDotEnv applies path to the environment. A missing file is fine;
// plain environment variables still apply.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func defaultClientID() string {
	return "esp-sim-" + uuid.NewString()[:8]
}

// envParser reads typed environment variables and remembers every
// malformed value so they can be reported together.
type envParser struct {
	errs []error
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}

func (p *envParser) getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func (p *envParser) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

// getQoS reads an MQTT QoS level; anything outside 0..2 is an error
func (p *envParser) getQoS(key string, defaultValue byte) byte {
	q := p.getInt(key, int(defaultValue))
	if q < 0 || q > 2 {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %d (expected 0, 1 or 2)", key, q))
		return defaultValue
	}
	return byte(q)
}

func (p *envParser) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	p.errs = append(p.errs, fmt.Errorf("invalid %s: %q (expected true/false or 1/0)", key, value))
	return defaultValue
}

func (p *envParser) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return duration
}
