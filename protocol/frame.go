package protocol

import (
	"encoding/binary"
	"io"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// Frame represents an undecoded AMQP frame
type Frame struct {
	Type    byte
	Channel uint16
	Size    uint32
	Payload []byte
}

// MarshalBinary encodes a frame into binary format following AMQP 0.9.1 spec
// Format: (1-byte type) + (2-byte channel) + (4-byte size) + (size-byte payload) + (1-byte end: 0xCE)
func (f *Frame) MarshalBinary() ([]byte, error) {
	payloadLen := len(f.Payload)
	data := make([]byte, FrameOverhead+payloadLen)

	data[0] = f.Type
	binary.BigEndian.PutUint16(data[1:3], f.Channel)
	binary.BigEndian.PutUint32(data[3:7], uint32(payloadLen))
	copy(data[7:], f.Payload)
	data[7+payloadLen] = FrameEnd

	return data, nil
}

// UnmarshalBinary decodes exactly one frame from data. The existing payload
// slice is reused when it is large enough.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < FrameOverhead {
		return amqperrors.NewTruncated("frame", FrameOverhead, len(data))
	}

	frameType := data[0]
	payloadSize := binary.BigEndian.Uint32(data[3:7])

	expectedLen := uint64(FrameOverhead) + uint64(payloadSize)
	if uint64(len(data)) != expectedLen {
		return amqperrors.NewFrameError("frame size mismatch", frameType)
	}
	if end := data[len(data)-1]; end != FrameEnd {
		return amqperrors.NewInvalidFrameEnd(frameType, end)
	}

	f.Type = frameType
	f.Channel = binary.BigEndian.Uint16(data[1:3])
	f.Size = payloadSize
	if cap(f.Payload) >= int(payloadSize) {
		f.Payload = f.Payload[:payloadSize]
	} else {
		f.Payload = make([]byte, payloadSize)
	}
	copy(f.Payload, data[7:7+payloadSize])

	return nil
}

// Decode decodes the frame payload according to its type.
func (f *Frame) Decode() (FrameValue, error) {
	return decodePayload(f.Type, f.Channel, f.Payload)
}

// ReadFrame reads one undecoded frame from an io.Reader. The protocol header
// is not a frame and is not recognized here.
func ReadFrame(reader io.Reader) (*Frame, error) {
	headerPtr := getFrameHeader()
	header := *headerPtr
	defer putFrameHeader(headerPtr)

	// type, channel, size
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}

	frameType := header[0]
	channel := binary.BigEndian.Uint16(header[1:3])
	size := binary.BigEndian.Uint32(header[3:7])

	// payload + end-byte
	payload := make([]byte, uint64(size)+FrameEndSize)
	if _, err := io.ReadFull(reader, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if payload[size] != FrameEnd {
		return nil, amqperrors.NewInvalidFrameEnd(frameType, payload[size])
	}

	return &Frame{
		Type:    frameType,
		Channel: channel,
		Size:    size,
		Payload: payload[:size],
	}, nil
}

// WriteFrame writes a frame to an io.Writer using a pooled buffer so the
// header, payload and end marker go out in a single write.
func WriteFrame(writer io.Writer, frame *Frame) error {
	buf := getBuffer()
	defer putBuffer(buf)

	payloadLen := len(frame.Payload)
	buf.Grow(FrameOverhead + payloadLen)

	buf.WriteByte(frame.Type)

	var header [6]byte
	binary.BigEndian.PutUint16(header[0:2], frame.Channel)
	binary.BigEndian.PutUint32(header[2:6], uint32(payloadLen))
	buf.Write(header[:])

	buf.Write(frame.Payload)

	buf.WriteByte(FrameEnd)

	_, err := buf.WriteTo(writer)
	return err
}
