// Package telemetry publishes pipeline statistics over MQTT.
//
// Reports are msgpack-encoded snapshots of pool directories, the capture loop
// and the camera session, tagged with a per-process session id so consumers
// can tell restarts apart.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/orion-care-sensor/modules/perception/capture"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// CameraStats are the camera session counters.
type CameraStats struct {
	Vendor   string `msgpack:"vendor" json:"vendor"`
	Captures uint64 `msgpack:"captures" json:"captures"`
	Failures uint64 `msgpack:"failures" json:"failures"`
}

// Report is one telemetry message.
type Report struct {
	SessionID  string               `msgpack:"session_id" json:"session_id"`
	InstanceID string               `msgpack:"instance_id" json:"instance_id"`
	Timestamp  time.Time            `msgpack:"timestamp" json:"timestamp"`
	Uptime     time.Duration        `msgpack:"uptime" json:"uptime"`
	Camera     CameraStats          `msgpack:"camera" json:"camera"`
	Capture    capture.Stats        `msgpack:"capture" json:"capture"`
	Pools      []sharedbuffer.Stats `msgpack:"pools" json:"pools"`
}

// Encode serializes a report as msgpack.
func Encode(r Report) ([]byte, error) {
	return msgpack.Marshal(r)
}

// Decode parses a msgpack report.
func Decode(payload []byte) (Report, error) {
	var r Report
	if err := msgpack.Unmarshal(payload, &r); err != nil {
		return Report{}, fmt.Errorf("telemetry: decode report: %w", err)
	}
	return r, nil
}

// Config configures an Emitter.
type Config struct {
	Broker     string // e.g. tcp://localhost:1883
	InstanceID string // MQTT client id and Report.InstanceID
	Topic      string
	QoS        byte
	Interval   time.Duration
}

// Emitter publishes Reports to an MQTT broker.
type Emitter struct {
	cfg       Config
	sessionID string
	startedAt time.Time

	// newClient is swapped in tests
	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewEmitter validates cfg and creates an unconnected Emitter.
func NewEmitter(cfg Config) (*Emitter, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("telemetry: broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("telemetry: topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("telemetry: invalid qos %d", cfg.QoS)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("telemetry: interval must be > 0")
	}

	return &Emitter{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		startedAt: time.Now(),
		newClient: mqtt.NewClient,
	}, nil
}

// SessionID identifies this process's reports.
func (e *Emitter) SessionID() string { return e.sessionID }

// Connect establishes the broker connection. paho reconnects on its own
// afterwards.
func (e *Emitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(fmt.Sprintf("%s-%s", e.cfg.InstanceID, e.sessionID[:8]))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		slog.Info("telemetry: mqtt connection established",
			"broker", e.cfg.Broker,
			"session_id", e.sessionID,
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("telemetry: mqtt connection lost, will auto-reconnect",
			"broker", e.cfg.Broker,
			"error", err,
		)
	}

	e.client = e.newClient(opts)

	slog.Info("telemetry: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("telemetry: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish sends one report. SessionID, InstanceID, Timestamp and Uptime are
// filled in by the Emitter.
func (e *Emitter) Publish(r Report) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("telemetry: mqtt not connected")
	}

	r.SessionID = e.sessionID
	r.InstanceID = e.cfg.InstanceID
	r.Timestamp = time.Now()
	r.Uptime = time.Since(e.startedAt)

	payload, err := Encode(r)
	if err != nil {
		e.countError()
		return fmt.Errorf("telemetry: failed to marshal report: %w", err)
	}

	token := e.client.Publish(e.cfg.Topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("telemetry: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("telemetry: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	slog.Debug("telemetry: report published",
		"topic", e.cfg.Topic,
		"qos", e.cfg.QoS,
		"size", len(payload),
	)
	return nil
}

// Run publishes collect() every Interval until ctx is cancelled.
// Publish failures are logged and counted, never returned.
func (e *Emitter) Run(ctx context.Context, collect func() Report) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.Publish(collect()); err != nil {
				slog.Warn("telemetry: publish failed", "error", err)
			}
		}
	}
}

// Close disconnects from the broker.
func (e *Emitter) Close() {
	if e.client == nil {
		return
	}
	e.client.Disconnect(250)
	e.setConnected(false)

	published, errors := e.Stats()
	slog.Info("telemetry: disconnected", "published", published, "errors", errors)
}

// Stats returns publish counters.
func (e *Emitter) Stats() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
