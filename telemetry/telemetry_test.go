package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/perception/capture"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

// fakeToken is a completed token. Embedding leaves unused methods nil.
type fakeToken struct {
	mqtt.Token
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes.
type fakeClient struct {
	mqtt.Client

	connectErr error
	publishErr error

	mu           sync.Mutex
	messages     []message
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token { return &fakeToken{err: c.connectErr} }

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) sent() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.messages...)
}

func newTestEmitter(t *testing.T, client *fakeClient) *Emitter {
	t.Helper()
	e, err := NewEmitter(Config{
		Broker:     "tcp://localhost:1883",
		InstanceID: "cam-01",
		Topic:      "perception/stats/cam-01",
		QoS:        1,
		Interval:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	e.newClient = func(*mqtt.ClientOptions) mqtt.Client { return client }
	return e
}

func TestNewEmitter_Validation(t *testing.T) {
	base := Config{Broker: "tcp://b:1883", Topic: "t", Interval: time.Second}

	_, err := NewEmitter(base)
	require.NoError(t, err)

	bad := []Config{
		{Topic: "t", Interval: time.Second},
		{Broker: "tcp://b:1883", Interval: time.Second},
		{Broker: "tcp://b:1883", Topic: "t", Interval: time.Second, QoS: 3},
		{Broker: "tcp://b:1883", Topic: "t"},
	}
	for _, cfg := range bad {
		_, err := NewEmitter(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	e := newTestEmitter(t, &fakeClient{})
	assert.Error(t, e.Publish(Report{}))

	_, errs := e.Stats()
	assert.Equal(t, uint64(1), errs)
}

func TestConnect_Failure(t *testing.T) {
	e := newTestEmitter(t, &fakeClient{connectErr: errors.New("refused")})
	err := e.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

// TestPublish_RoundTrip validates the wire payload decodes to the published
// report with emitter-filled identity fields.
func TestPublish_RoundTrip(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(t, client)
	require.NoError(t, e.Connect(context.Background()))

	report := Report{
		Camera:  CameraStats{Vendor: "sim", Captures: 42, Failures: 1},
		Capture: capture.Stats{Name: "cam0", FramesCaptured: 42, FPSTarget: 30},
		Pools: []sharedbuffer.Stats{{
			Name:         "images",
			Slots:        []sharedbuffer.SlotStats{{Index: 0, Freshness: 1}, {Index: 1, Freshness: 0, Occupied: true}},
			Occupied:     1,
			WriteCommits: 42,
		}},
	}
	require.NoError(t, e.Publish(report))

	sent := client.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "perception/stats/cam-01", sent[0].topic)
	assert.Equal(t, byte(1), sent[0].qos)

	got, err := Decode(sent[0].payload)
	require.NoError(t, err)
	assert.Equal(t, e.SessionID(), got.SessionID)
	assert.Equal(t, "cam-01", got.InstanceID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, report.Camera, got.Camera)
	assert.Equal(t, report.Capture.FramesCaptured, got.Capture.FramesCaptured)
	assert.Equal(t, report.Pools, got.Pools)

	e.Close()
	assert.True(t, client.disconnected)
	published, _ := e.Stats()
	assert.Equal(t, uint64(1), published)
}

func TestPublish_BrokerError(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("not authorized")}
	e := newTestEmitter(t, client)
	require.NoError(t, e.Connect(context.Background()))

	assert.Error(t, e.Publish(Report{}))
	published, errs := e.Stats()
	assert.Zero(t, published)
	assert.Equal(t, uint64(1), errs)
}

func TestRun_PublishesPeriodically(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(t, client)
	require.NoError(t, e.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, func() Report { return Report{Camera: CameraStats{Vendor: "sim"}} })
	}()

	require.Eventually(t, func() bool { return len(client.sent()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xc1})
	assert.Error(t, err)
}
