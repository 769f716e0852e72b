package transport

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-wire/auth"
	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/metrics"
	"github.com/maxpert/amqp-wire/protocol"
)

// Reader decodes frames from a byte stream. It is not safe for concurrent
// use.
type Reader struct {
	r       io.Reader
	decoder protocol.FrameDecoder
	logger  *zap.Logger
	metrics *metrics.Collector

	buf        []byte
	start, end int
	last       []byte

	assembler *protocol.Assembler

	// err is sticky; after a fatal error the stream position is unknown.
	err error
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	o := newOptions(opts)
	return &Reader{
		r:       r,
		decoder: o.decoder,
		logger:  o.logger,
		metrics: o.metrics,
		buf:     make([]byte, o.readBufferSize),
	}
}

// ReadFrame returns the next frame and its channel. It returns io.EOF when
// the stream ends on a frame boundary and io.ErrUnexpectedEOF when it ends
// inside a frame. After any error every later call returns the same error.
func (r *Reader) ReadFrame() (uint16, protocol.FrameValue, error) {
	if r.err != nil {
		return 0, nil, r.err
	}
	r.last = nil

	for {
		n, channel, frame, err := r.decoder.Decode(r.buf[r.start:r.end])
		if err == nil {
			r.last = r.buf[r.start : r.start+n]
			r.start += n
			r.metrics.RecordFrameDecoded(frame.FrameType(), n)
			if ce := r.logger.Check(zap.DebugLevel, "frame decoded"); ce != nil {
				ce.Write(
					zap.Uint16("channel", channel),
					zap.String("type", protocol.FrameTypeName(frame.FrameType())),
					zap.Int("bytes", n),
					zap.Stringer("frame", auth.RedactFrame(frame).(fmt.Stringer)),
				)
			}
			return channel, frame, nil
		}

		if !amqperrors.IsIncomplete(err) {
			r.metrics.RecordDecodeError(err)
			r.logger.Warn("frame decode failed",
				zap.Error(err),
				zap.Int("reply_code", amqperrors.ReplyCode(err)),
				zap.Int("buffered", r.end-r.start))
			r.err = errors.Wrap(err, "amqp/transport: decode frame")
			return 0, nil, r.err
		}

		if err := r.fill(); err != nil {
			r.err = err
			return 0, nil, err
		}
	}
}

// Raw returns the wire bytes of the frame last returned by ReadFrame. The
// slice is only valid until the next call to ReadFrame.
func (r *Reader) Raw() []byte {
	return r.last
}

// Buffered returns the number of bytes read from the stream but not yet
// decoded.
func (r *Reader) Buffered() int {
	return r.end - r.start
}

// ReadMessage reads frames until a method, with its content for content
// methods, is complete. Heartbeats and the protocol header are skipped.
func (r *Reader) ReadMessage() (*protocol.Message, error) {
	if r.assembler == nil {
		r.assembler = protocol.NewAssembler()
	}
	for {
		channel, frame, err := r.ReadFrame()
		if err != nil {
			return nil, err
		}
		msg, err := r.assembler.Feed(channel, frame)
		if err != nil {
			r.logger.Warn("frame out of sequence", zap.Uint16("channel", channel), zap.Error(err))
			r.err = errors.Wrapf(err, "amqp/transport: channel %d", channel)
			return nil, r.err
		}
		if msg != nil {
			r.metrics.RecordMessage(msg)
			return msg, nil
		}
	}
}

// fill reads more bytes, compacting or growing the buffer to make room.
func (r *Reader) fill() error {
	if r.start > 0 {
		copy(r.buf, r.buf[r.start:r.end])
		r.end -= r.start
		r.start = 0
	}
	if r.end == len(r.buf) {
		grown := make([]byte, 2*len(r.buf))
		copy(grown, r.buf[:r.end])
		r.buf = grown
	}

	n, err := r.r.Read(r.buf[r.end:])
	r.end += n
	if n > 0 {
		return nil
	}
	switch {
	case err == io.EOF && r.end > 0:
		r.logger.Debug("stream ended inside a frame", zap.Int("buffered", r.end))
		return io.ErrUnexpectedEOF
	case err == io.EOF:
		return io.EOF
	case err != nil:
		return errors.Wrap(err, "amqp/transport: read")
	default:
		return nil
	}
}
