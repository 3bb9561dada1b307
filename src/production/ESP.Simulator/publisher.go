package espsimulator

import (
	"context"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Config"
	logger "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Logger"
	metrics "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Metrics"
	espmodels "gitlab.com/maplesense1/esp.sim_module/src/production/ESP.Models"
)

// Publisher is the simulated ESP device. It owns a single MQTT session
// and publishes one temperature reading per interval until stopped.
type Publisher struct {
	cfg     config.SimulatorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	sampler Sampler
	now     func() time.Time

	client    mqtt.Client
	published atomic.Int64
}

// Option customises a Publisher
type Option func(*Publisher)

// WithSampler replaces the default uniform temperature sampler
func WithSampler(s Sampler) Option {
	return func(p *Publisher) { p.sampler = s }
}

// WithClock replaces time.Now as the source of reading timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithMetrics attaches Prometheus collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New creates a publisher for cfg. It does not connect; call Connect first.
func New(cfg config.SimulatorConfig, log *logger.Logger, opts ...Option) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	p := &Publisher{
		cfg:    cfg,
		logger: log.WithComponent("publisher"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sampler == nil {
		p.sampler = NewUniformSampler(cfg.Publish.TempMin, cfg.Publish.TempMax, uint64(time.Now().UnixNano()))
	}
	return p
}

// Connect opens the broker session. It makes exactly one attempt.
func (p *Publisher) Connect(ctx context.Context) error {
	broker := p.cfg.MQTT.BrokerURL()

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(p.cfg.MQTT.ClientID).
		SetKeepAlive(p.cfg.MQTT.KeepAlive).
		SetPingTimeout(p.cfg.MQTT.PingTimeout).
		SetConnectTimeout(p.cfg.MQTT.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(true)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.metrics.SetConnected(false)
		p.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}

	p.logger.Logger.Info().Str("broker", broker).Str("client_id", p.cfg.MQTT.ClientID).Msg("Connecting to MQTT broker")

	p.client = mqtt.NewClient(opts)
	if err := waitToken(ctx, p.client.Connect(), p.cfg.MQTT.ConnectTimeout, ErrConnectTimeout); err != nil {
		p.metrics.ObserveConnectFailure()
		return &ConnectError{Broker: broker, Err: err}
	}

	p.metrics.SetConnected(true)
	p.logger.Logger.Info().Str("broker", broker).Msg("MQTT connected")
	return nil
}

// Run publishes readings until ctx is cancelled or a publish fails.
// The interval is waited after each publish completes, so the period
// stretches by the broker round trip. Cancellation returns nil.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.IsConnected() {
		return &PublishError{Topic: p.cfg.Publish.Topic, Err: ErrNotConnected}
	}

	p.logger.Logger.Info().
		Str("topic", p.cfg.Publish.Topic).
		Uint8("qos", p.cfg.Publish.QoS).
		Bool("retain", p.cfg.Publish.Retain).
		Dur("interval", p.cfg.Publish.Interval).
		Msg("Publish loop started")

	for {
		if ctx.Err() != nil {
			p.logger.Info("Publish loop stopped")
			return nil
		}

		if _, err := p.PublishReading(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("Publish loop stopped")
				return nil
			}
			return err
		}

		delay := time.NewTimer(p.cfg.Publish.Interval)
		select {
		case <-ctx.Done():
			delay.Stop()
			p.logger.Info("Publish loop stopped")
			return nil
		case <-delay.C:
		}
	}
}

// PublishReading samples, stamps and publishes a single reading, waiting
// for the broker to complete the delivery handshake.
func (p *Publisher) PublishReading(ctx context.Context) (espmodels.Reading, error) {
	topic := p.cfg.Publish.Topic
	reading := espmodels.NewReading(p.sampler.Sample(), p.now(), p.cfg.Publish.TimestampLayout)

	if p.client == nil {
		return reading, &PublishError{Topic: topic, Err: ErrNotConnected}
	}

	start := time.Now()
	tk := p.client.Publish(topic, p.cfg.Publish.QoS, p.cfg.Publish.Retain, reading.Payload())
	if err := waitToken(ctx, tk, p.cfg.Publish.Timeout, ErrPublishTimeout); err != nil {
		p.metrics.ObservePublishFailure()
		p.logger.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish reading")
		return reading, &PublishError{Topic: topic, Err: err}
	}

	p.metrics.ObservePublished(reading.Temp, time.Since(start))
	n := p.published.Add(1)
	p.logger.Logger.Debug().
		Str("topic", topic).
		Int("temp", reading.Temp).
		Str("timecreated", reading.TimeCreated).
		Int64("count", n).
		Msg("Published reading")
	return reading, nil
}

// Close disconnects from the broker, giving in-flight work 250ms
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected")
	}
	p.metrics.SetConnected(false)
}

func (p *Publisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnectionOpen()
}

// Published returns the number of readings the broker acknowledged
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

// waitToken blocks until tk completes, timeout elapses or ctx ends
func waitToken(ctx context.Context, tk mqtt.Token, timeout time.Duration, timeoutErr error) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tk.Done():
		return tk.Error()
	case <-timer.C:
		return timeoutErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
