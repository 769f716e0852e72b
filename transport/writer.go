package transport

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/metrics"
	"github.com/maxpert/amqp-wire/protocol"
)

// Writer encodes frames onto a stream. It is safe for concurrent use; the
// frames of one WriteMessage call are never interleaved with other writes.
type Writer struct {
	mu       sync.Mutex
	w        *bufio.Writer
	frameMax uint32
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	o := newOptions(opts)
	return &Writer{
		w:        bufio.NewWriterSize(w, o.writeBufferSize),
		frameMax: o.frameMax,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// WriteProtocolHeader sends the AMQP 0-9-1 protocol header.
func (w *Writer) WriteProtocolHeader() error {
	return w.WriteFrame(0, protocol.DefaultProtocolHeader)
}

// WriteFrame encodes and sends one frame.
func (w *Writer) WriteFrame(channel uint16, frame protocol.FrameValue) error {
	buf := protocol.GetBufferForSize(sizeHint(frame))
	defer protocol.PutBufferForSize(buf)

	data, err := protocol.AppendFrame((*buf)[:0], channel, frame)
	*buf = data
	if err != nil {
		return errors.Wrap(err, "amqp/transport: encode frame")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.send(data); err != nil {
		return err
	}
	w.metrics.RecordFrameEncoded(frame.FrameType(), len(data))
	return nil
}

// WriteMethod sends m as a method frame on channel.
func (w *Writer) WriteMethod(channel uint16, m *protocol.Method) error {
	return w.WriteFrame(channel, protocol.MethodFrame{Method: m})
}

// WriteMessage sends a content method followed by its content header and
// body frames. The body is split so no frame exceeds the frame-max.
func (w *Writer) WriteMessage(channel uint16, m *protocol.Method, props *protocol.Properties, body []byte) error {
	if m == nil || !m.Def.HasContent {
		return amqperrors.NewUnsupportedValue("WriteMessage needs a content method")
	}

	chunk := len(body)
	if w.frameMax > protocol.FrameOverhead {
		chunk = int(w.frameMax) - protocol.FrameOverhead
	}

	buf := protocol.GetBufferForSize(len(body) + 512)
	defer protocol.PutBufferForSize(buf)

	var (
		data  = (*buf)[:0]
		err   error
		types []byte
		sizes []int
	)
	appendFrame := func(frame protocol.FrameValue) {
		if err != nil {
			return
		}
		mark := len(data)
		if data, err = protocol.AppendFrame(data, channel, frame); err == nil {
			types = append(types, frame.FrameType())
			sizes = append(sizes, len(data)-mark)
		}
	}

	appendFrame(protocol.MethodFrame{Method: m})
	appendFrame(protocol.HeaderFrame{Header: protocol.NewContentHeader(m.Def.ClassID, uint64(len(body)), props)})
	for offset := 0; offset < len(body); offset += chunk {
		appendFrame(protocol.BodyFrame{Payload: body[offset:min(offset+chunk, len(body))]})
	}
	*buf = data
	if err != nil {
		return errors.Wrapf(err, "amqp/transport: encode %s", m.Name())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.send(data); err != nil {
		return err
	}
	for i, frameType := range types {
		w.metrics.RecordFrameEncoded(frameType, sizes[i])
	}
	w.logger.Debug("message written",
		zap.Uint16("channel", channel),
		zap.String("method", m.Name()),
		zap.Int("body_bytes", len(body)),
		zap.Int("frames", len(types)))
	return nil
}

// WriteRaw sends bytes that already hold complete frames.
func (w *Writer) WriteRaw(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.send(data)
}

// send writes data and flushes. The caller holds w.mu.
func (w *Writer) send(data []byte) error {
	if _, err := w.w.Write(data); err != nil {
		return errors.Wrap(err, "amqp/transport: write")
	}
	if err := w.w.Flush(); err != nil {
		return errors.Wrap(err, "amqp/transport: flush")
	}
	return nil
}

func sizeHint(frame protocol.FrameValue) int {
	if body, ok := frame.(protocol.BodyFrame); ok {
		return len(body.Payload) + protocol.FrameOverhead
	}
	return 512
}
