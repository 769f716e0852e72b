package protocol

import (
	"bytes"
	"fmt"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// ContentBody accumulates the fragments of a message body carried by
// consecutive body frames.
type ContentBody struct {
	buf bytes.Buffer
}

// Append adds one body frame payload.
func (b *ContentBody) Append(fragment []byte) {
	b.buf.Write(fragment)
}

// Len returns the number of body bytes received so far.
func (b *ContentBody) Len() int {
	return b.buf.Len()
}

// Bytes returns the accumulated body. The slice aliases the accumulator.
func (b *ContentBody) Bytes() []byte {
	return b.buf.Bytes()
}

// Message is a method with, for content methods, its header and full body.
type Message struct {
	Channel uint16
	Method  *Method
	Header  *ContentHeader
	Body    []byte
}

// HasContent reports whether the message carries a content header and body.
func (m *Message) HasContent() bool {
	return m.Header != nil
}

func (m *Message) String() string {
	if m.Header == nil {
		return fmt.Sprintf("channel %d: %s", m.Channel, m.Method.Describe())
	}
	return fmt.Sprintf("channel %d: %s %s body=%d bytes",
		m.Channel, m.Method.Describe(), m.Header, len(m.Body))
}

type pendingContent struct {
	method *Method
	header *ContentHeader
	body   ContentBody
}

// Assembler turns the frame sequence of each channel into messages. A content
// method must be followed by its header frame and then body frames until the
// announced body size has arrived. Frames for different channels may
// interleave. An Assembler is not safe for concurrent use.
type Assembler struct {
	pending map[uint16]*pendingContent
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[uint16]*pendingContent)}
}

// Feed processes one decoded frame. It returns a message once one is
// complete, or nil when more frames are needed. Protocol header and heartbeat
// frames produce nothing. Frames out of sequence are ErrUnexpectedFrame.
func (a *Assembler) Feed(channel uint16, frame FrameValue) (*Message, error) {
	switch f := frame.(type) {
	case MethodFrame:
		if _, busy := a.pending[channel]; busy {
			return nil, amqperrors.NewUnexpectedFrame(channel, FrameMethod, "content of the previous method is incomplete")
		}
		if !f.Method.Def.HasContent {
			return &Message{Channel: channel, Method: f.Method}, nil
		}
		a.pending[channel] = &pendingContent{method: f.Method}
		return nil, nil

	case HeaderFrame:
		p, ok := a.pending[channel]
		if !ok {
			return nil, amqperrors.NewUnexpectedFrame(channel, FrameHeader, "no content method precedes the header")
		}
		if p.header != nil {
			return nil, amqperrors.NewUnexpectedFrame(channel, FrameHeader, "duplicate content header")
		}
		if f.Header.ClassID != p.method.Def.ClassID {
			return nil, amqperrors.NewUnexpectedFrame(channel, FrameHeader,
				fmt.Sprintf("header class %d does not match %s", f.Header.ClassID, p.method.Def.Name))
		}
		p.header = f.Header
		return a.complete(channel, p), nil

	case BodyFrame:
		p, ok := a.pending[channel]
		if !ok || p.header == nil {
			return nil, amqperrors.NewUnexpectedFrame(channel, FrameBody, "no content header precedes the body")
		}
		p.body.Append(f.Payload)
		if uint64(p.body.Len()) > p.header.BodySize {
			delete(a.pending, channel)
			return nil, amqperrors.NewUnexpectedFrame(channel, FrameBody,
				fmt.Sprintf("body of %d bytes overruns announced size %d", p.body.Len(), p.header.BodySize))
		}
		return a.complete(channel, p), nil

	case ProtocolHeader, HeartbeatFrame:
		return nil, nil

	default:
		return nil, amqperrors.NewUnsupportedValue("no assembly rule for frame %T", frame)
	}
}

func (a *Assembler) complete(channel uint16, p *pendingContent) *Message {
	if uint64(p.body.Len()) < p.header.BodySize {
		return nil
	}
	delete(a.pending, channel)
	return &Message{
		Channel: channel,
		Method:  p.method,
		Header:  p.header,
		Body:    p.body.Bytes(),
	}
}

// Pending reports whether a message on channel is partially assembled.
func (a *Assembler) Pending(channel uint16) bool {
	_, ok := a.pending[channel]
	return ok
}

// Reset drops any partial message on channel, as when the channel closes.
func (a *Assembler) Reset(channel uint16) {
	delete(a.pending, channel)
}
