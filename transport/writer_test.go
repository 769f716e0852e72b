package transport

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/metrics"
	"github.com/maxpert/amqp-wire/protocol"
)

// lockedBuffer lets concurrent writers share a bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func publish(t *testing.T, key string) *protocol.Method {
	return mustMethod(t, "Basic.Publish", map[string]interface{}{"exchange": "amq.direct", "routing_key": key})
}

func TestWriterProtocolHeaderAndMethod(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	require.NoError(t, w.WriteProtocolHeader())
	require.NoError(t, w.WriteMethod(1, mustMethod(t, "Channel.OpenOk", nil)))

	assert.Equal(t, "AMQP\x00\x00\x09\x01"+"\x01\x00\x01\x00\x00\x00\x08\x00\x14\x00\x0b\x00\x00\x00\x00\xce", out.String())
}

func TestWriterSplitsBody(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, WithFrameMax(protocol.FrameMinSize))

	body := bytes.Repeat([]byte("0123456789"), 1000)
	props := protocol.NewBasicProperties()
	require.NoError(t, props.Set("delivery_mode", protocol.Persistent))
	require.NoError(t, w.WriteMessage(5, publish(t, "orders"), props, body))

	r := NewReader(bytes.NewReader(out.Bytes()))
	var bodies []int
	for range 5 {
		channel, frame, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, uint16(5), channel)
		assert.LessOrEqual(t, len(r.Raw()), protocol.FrameMinSize)
		if b, ok := frame.(protocol.BodyFrame); ok {
			bodies = append(bodies, len(b.Payload))
		}
	}
	assert.Equal(t, []int{4088, 4088, 1824}, bodies)

	msg, err := NewReader(bytes.NewReader(out.Bytes())).ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, body, msg.Body)
	assert.Equal(t, protocol.Persistent, msg.Header.Properties.DeliveryMode())
	assert.Equal(t, "orders", msg.Method.Text("routing_key"))
}

func TestWriterEmptyBody(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	require.NoError(t, w.WriteMessage(1, publish(t, "empty"), nil, nil))

	r := NewReader(bytes.NewReader(out.Bytes()))
	frames := readAll(t, r)
	require.Len(t, frames, 2, "method and header only")

	msg, err := NewReader(bytes.NewReader(out.Bytes())).ReadMessage()
	require.NoError(t, err)
	assert.True(t, msg.HasContent())
	assert.Empty(t, msg.Body)
}

func TestWriterRejectsContentlessMethod(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	err := w.WriteMessage(1, mustMethod(t, "Queue.Declare", nil), nil, []byte("x"))
	assert.True(t, errors.Is(err, amqperrors.ErrUnsupportedValue))
	err = w.WriteMessage(1, nil, nil, nil)
	assert.True(t, errors.Is(err, amqperrors.ErrUnsupportedValue))
	assert.Zero(t, out.Len())
}

func TestWriterEncodeErrorWritesNothing(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	err := w.WriteFrame(1, protocol.MethodFrame{})
	assert.True(t, errors.Is(err, amqperrors.ErrUnsupportedValue))

	props := protocol.NewBasicProperties()
	require.NoError(t, props.Set("timestamp", time.Unix(-60, 0)))
	err = w.WriteMessage(1, publish(t, "old"), props, []byte("x"))
	assert.True(t, errors.Is(err, amqperrors.ErrUnsupportedValue))
	assert.Zero(t, out.Len())
}

func TestWriterConcurrentMessages(t *testing.T) {
	var out lockedBuffer
	w := NewWriter(&out, WithFrameMax(protocol.FrameMinSize))

	const writers = 8
	const perWriter = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(channel uint16) {
			defer wg.Done()
			for j := range perWriter {
				body := bytes.Repeat([]byte{byte(j)}, 5000+j)
				assert.NoError(t, w.WriteMessage(channel, publish(t, fmt.Sprint(j)), nil, body))
			}
		}(uint16(i + 1))
	}
	wg.Wait()

	r := NewReader(bytes.NewReader(out.buf.Bytes()))
	next := make(map[uint16]int)
	for range writers * perWriter {
		msg, err := r.ReadMessage()
		require.NoError(t, err)
		j := next[msg.Channel]
		assert.Equal(t, fmt.Sprint(j), msg.Method.Text("routing_key"))
		assert.Equal(t, bytes.Repeat([]byte{byte(j)}, 5000+j), msg.Body)
		next[msg.Channel]++
	}
	for i := range writers {
		assert.Equal(t, perWriter, next[uint16(i+1)])
	}
}

func TestWriterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg)

	var out bytes.Buffer
	w := NewWriter(&out, WithMetrics(collector), WithFrameMax(protocol.FrameMinSize))
	require.NoError(t, w.WriteMessage(1, publish(t, "m"), nil, make([]byte, 5000)))
	require.NoError(t, w.WriteFrame(0, protocol.HeartbeatFrame{}))

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FramesEncoded.WithLabelValues("method")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FramesEncoded.WithLabelValues("header")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.FramesEncoded.WithLabelValues("body")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FramesEncoded.WithLabelValues("heartbeat")))
	assert.Equal(t, float64(out.Len()), testutil.ToFloat64(collector.BytesWritten))
}

func TestWriterRaw(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	frame := encode(t, 0, protocol.HeartbeatFrame{})

	require.NoError(t, w.WriteRaw(frame))
	assert.Equal(t, frame, out.Bytes())
}
