package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// FrameValue is a decoded frame. The set of implementations is closed:
// ProtocolHeader, MethodFrame, HeaderFrame, BodyFrame and HeartbeatFrame.
type FrameValue interface {
	FrameType() byte
}

// ProtocolHeader opens a connection. It has no frame envelope and no channel.
type ProtocolHeader struct {
	Major    uint8
	Minor    uint8
	Revision uint8
}

// DefaultProtocolHeader is the header sent by an AMQP 0-9-1 client.
var DefaultProtocolHeader = ProtocolHeader{VersionMajor, VersionMinor, VersionRevision}

// MethodFrame carries one method.
type MethodFrame struct {
	Method *Method
}

// HeaderFrame carries the content header that follows a content method.
type HeaderFrame struct {
	Header *ContentHeader
}

// BodyFrame carries one fragment of a message body.
type BodyFrame struct {
	Payload []byte
}

// HeartbeatFrame has no payload.
type HeartbeatFrame struct{}

func (ProtocolHeader) FrameType() byte { return FrameProtocolHeader }
func (MethodFrame) FrameType() byte    { return FrameMethod }
func (HeaderFrame) FrameType() byte    { return FrameHeader }
func (BodyFrame) FrameType() byte      { return FrameBody }
func (HeartbeatFrame) FrameType() byte { return FrameHeartbeat }

func (h ProtocolHeader) String() string {
	return fmt.Sprintf("ProtocolHeader(%d-%d-%d)", h.Major, h.Minor, h.Revision)
}

func (f MethodFrame) String() string { return f.Method.Describe() }

func (f HeaderFrame) String() string { return f.Header.String() }

func (f BodyFrame) String() string { return fmt.Sprintf("ContentBody(%d bytes)", len(f.Payload)) }

func (HeartbeatFrame) String() string { return "Heartbeat" }

// FrameDecoder decodes frames from a byte buffer. It keeps no state between
// calls, so a call that reports ErrIncomplete can be repeated unchanged once
// more bytes are buffered.
type FrameDecoder struct {
	// MaxFrameSize bounds the declared payload size. Zero means no limit.
	MaxFrameSize uint32
}

// DecodeFrame decodes one frame from the front of data with no size limit.
func DecodeFrame(data []byte) (int, uint16, FrameValue, error) {
	return FrameDecoder{}.Decode(data)
}

// Decode returns the number of bytes consumed, the channel and the decoded
// frame. The count includes the frame header and end marker. A buffer that
// holds only part of a frame yields ErrIncomplete; every other error means
// the stream is unusable.
func (d FrameDecoder) Decode(data []byte) (int, uint16, FrameValue, error) {
	if len(data) >= len(protocolHeaderPrefix) && bytes.Equal(data[:len(protocolHeaderPrefix)], protocolHeaderPrefix[:]) {
		if len(data) < ProtocolHeaderSize {
			return 0, 0, nil, amqperrors.NewIncomplete(ProtocolHeaderSize, len(data))
		}
		return ProtocolHeaderSize, 0, ProtocolHeader{
			Major:    data[5],
			Minor:    data[6],
			Revision: data[7],
		}, nil
	}

	if len(data) < FrameHeaderSize {
		return 0, 0, nil, amqperrors.NewIncomplete(FrameHeaderSize, len(data))
	}

	frameType := data[0]
	channel := binary.BigEndian.Uint16(data[1:3])
	size := binary.BigEndian.Uint32(data[3:7])

	if d.MaxFrameSize > 0 && size > d.MaxFrameSize {
		return 0, 0, nil, amqperrors.NewFrameError(
			fmt.Sprintf("frame size %d exceeds maximum %d", size, d.MaxFrameSize), frameType)
	}

	total := uint64(FrameOverhead) + uint64(size)
	if uint64(len(data)) < total {
		return 0, 0, nil, amqperrors.NewIncomplete(int(total), len(data))
	}

	end := int(total) - 1
	if data[end] != FrameEnd {
		return 0, 0, nil, amqperrors.NewInvalidFrameEnd(frameType, data[end])
	}

	value, err := decodePayload(frameType, channel, data[FrameHeaderSize:end])
	if err != nil {
		return 0, 0, nil, err
	}
	return int(total), channel, value, nil
}

// decodePayload decodes a complete frame payload. The payload length is known
// here, so running short or leaving bytes over is a malformed frame.
func decodePayload(frameType byte, channel uint16, payload []byte) (FrameValue, error) {
	switch frameType {
	case FrameMethod:
		method, err := decodeMethodPayload(payload)
		if err != nil {
			return nil, err
		}
		return MethodFrame{Method: method}, nil

	case FrameHeader:
		n, header, err := DecodeContentHeader(payload)
		if err != nil {
			return nil, inFrame(err, "content header", FrameHeader)
		}
		if n != len(payload) {
			return nil, trailingBytes("content header", len(payload)-n, FrameHeader)
		}
		return HeaderFrame{Header: header}, nil

	case FrameBody:
		body := make([]byte, len(payload))
		copy(body, payload)
		return BodyFrame{Payload: body}, nil

	case FrameHeartbeat:
		if len(payload) != 0 {
			return nil, amqperrors.NewFrameError(
				fmt.Sprintf("heartbeat on channel %d carries %d payload bytes", channel, len(payload)), FrameHeartbeat)
		}
		return HeartbeatFrame{}, nil

	default:
		return nil, amqperrors.NewUnknownFrameType(frameType)
	}
}

func decodeMethodPayload(payload []byte) (*Method, error) {
	n, index, err := DecodeLong(payload)
	if err != nil {
		return nil, inFrame(err, "method index", FrameMethod)
	}

	def, ok := LookupMethodIndex(uint32(index))
	if !ok {
		return nil, amqperrors.NewUnknownMethod(uint16(uint32(index)>>16), uint16(index))
	}

	args, method, err := DecodeMethodArguments(def, payload[n:])
	if err != nil {
		return nil, inFrame(err, def.Name+" arguments", FrameMethod)
	}
	if n+args != len(payload) {
		return nil, trailingBytes(def.Name+" arguments", len(payload)-n-args, FrameMethod).
			WithMethod(def.Name)
	}
	return method, nil
}

// inFrame turns a truncation inside a complete frame into a malformed frame.
func inFrame(err error, what string, frameType byte) error {
	if errors.Is(err, amqperrors.ErrTruncated) {
		return amqperrors.NewFrameError(what+" overrun the frame payload", frameType).WithCause(err)
	}
	return err
}

func trailingBytes(what string, extra int, frameType byte) *amqperrors.ProtocolError {
	return amqperrors.NewFrameError(fmt.Sprintf("%d unexpected bytes after %s", extra, what), frameType)
}

// EncodeFrame returns the wire form of a frame on channel. The channel is
// ignored for the protocol header.
func EncodeFrame(channel uint16, frame FrameValue) ([]byte, error) {
	return AppendFrame(nil, channel, frame)
}

// AppendFrame appends the wire form of a frame to dst. On error dst is
// returned unchanged.
func AppendFrame(dst []byte, channel uint16, frame FrameValue) ([]byte, error) {
	if ph, ok := frame.(ProtocolHeader); ok {
		dst = append(dst, protocolHeaderPrefix[:]...)
		return append(dst, 0, ph.Major, ph.Minor, ph.Revision), nil
	}

	start := len(dst)
	dst = append(dst, frame.FrameType())
	dst = AppendShort(dst, channel)
	dst = append(dst, 0, 0, 0, 0)

	var err error
	switch f := frame.(type) {
	case MethodFrame:
		if f.Method == nil {
			return dst[:start], amqperrors.NewUnsupportedValue("method frame without a method")
		}
		dst = binary.BigEndian.AppendUint32(dst, f.Method.Def.Index())
		dst, err = appendFields(dst, f.Method.Def.Fields, f.Method.values)
		if err != nil {
			err = withMethod(err, f.Method.Def)
		}
	case HeaderFrame:
		if f.Header == nil {
			return dst[:start], amqperrors.NewUnsupportedValue("header frame without a header")
		}
		dst, err = f.Header.AppendTo(dst)
	case BodyFrame:
		dst = append(dst, f.Payload...)
	case HeartbeatFrame:
	default:
		err = amqperrors.NewUnsupportedValue("no encoder for frame %T", frame)
	}
	if err != nil {
		return dst[:start], err
	}

	size := len(dst) - start - FrameHeaderSize
	if uint64(size) > math.MaxUint32 {
		return dst[:start], amqperrors.NewUnsupportedValue("frame payload of %d bytes exceeds 4GiB", size)
	}
	binary.BigEndian.PutUint32(dst[start+3:start+7], uint32(size))
	return append(dst, FrameEnd), nil
}

// EncodeMethod returns a complete method frame for m on channel.
func EncodeMethod(channel uint16, m *Method) ([]byte, error) {
	return EncodeFrame(channel, MethodFrame{Method: m})
}
