package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

func TestFrameMarshalUnmarshal(t *testing.T) {
	originalFrame := &Frame{
		Type:    FrameMethod,
		Channel: 1,
		Size:    4,
		Payload: []byte{0x00, 0x0A, 0x00, 0x33}, // connection.close-ok
	}

	data, err := originalFrame.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}
	if len(data) != 12 || data[11] != FrameEnd {
		t.Fatalf("Unexpected frame bytes % x", data)
	}

	newFrame := &Frame{}
	if err := newFrame.UnmarshalBinary(data); err != nil {
		t.Fatalf("Failed to unmarshal frame: %v", err)
	}

	if newFrame.Type != originalFrame.Type {
		t.Errorf("Expected type %d, got %d", originalFrame.Type, newFrame.Type)
	}
	if newFrame.Channel != originalFrame.Channel {
		t.Errorf("Expected channel %d, got %d", originalFrame.Channel, newFrame.Channel)
	}
	if newFrame.Size != 4 || !bytes.Equal(newFrame.Payload, originalFrame.Payload) {
		t.Errorf("Expected payload %v, got %v", originalFrame.Payload, newFrame.Payload)
	}

	value, err := newFrame.Decode()
	if err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if value.(MethodFrame).Method.Name() != "Connection.CloseOk" {
		t.Errorf("Unexpected method %v", value)
	}
}

func TestFrameUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind error
	}{
		{"short", []byte{0x08, 0x00}, amqperrors.ErrTruncated},
		{"size mismatch", []byte("\x08\x00\x00\x00\x00\x00\x02\xce"), amqperrors.ErrMalformedFrame},
		{"bad end", []byte("\x08\x00\x00\x00\x00\x00\x00\x00"), amqperrors.ErrInvalidFrameEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Frame
			if err := f.UnmarshalBinary(tt.data); !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestReadFrame(t *testing.T) {
	frame := &Frame{
		Type:    FrameMethod,
		Channel: 1,
		Size:    4,
		Payload: []byte{0x00, 0x0A, 0x00, 0x33},
	}

	frameData, err := frame.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}

	// Two frames back to back
	buf := bytes.NewReader(append(frameData, frameData...))

	for i := 0; i < 2; i++ {
		readFrame, err := ReadFrame(buf)
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if readFrame.Type != frame.Type {
			t.Errorf("Expected type %d, got %d", frame.Type, readFrame.Type)
		}
		if readFrame.Channel != frame.Channel {
			t.Errorf("Expected channel %d, got %d", frame.Channel, readFrame.Channel)
		}
		if !bytes.Equal(readFrame.Payload, frame.Payload) {
			t.Errorf("Expected payload %v, got %v", frame.Payload, readFrame.Payload)
		}
	}

	if _, err := ReadFrame(buf); err != io.EOF {
		t.Errorf("Expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadFrameErrors(t *testing.T) {
	// Cut inside the payload
	_, err := ReadFrame(bytes.NewReader([]byte("\x01\x00\x01\x00\x00\x00\x04\x00\x0a")))
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
	}

	_, err = ReadFrame(bytes.NewReader([]byte("\x08\x00\x00\x00\x00\x00\x00\x01")))
	if !errors.Is(err, amqperrors.ErrInvalidFrameEnd) {
		t.Errorf("Expected ErrInvalidFrameEnd, got %v", err)
	}
}

func TestWriteFrame(t *testing.T) {
	frame := &Frame{Type: FrameBody, Channel: 3, Payload: []byte("hello")}

	var out bytes.Buffer
	if err := WriteFrame(&out, frame); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}

	expected, _ := EncodeFrame(3, BodyFrame{Payload: []byte("hello")})
	if !bytes.Equal(out.Bytes(), expected) {
		t.Errorf("Expected % x, got % x", expected, out.Bytes())
	}
}

func TestBufferForSizeTiers(t *testing.T) {
	for _, size := range []int{10, 4096, DefaultFrameMax} {
		b := GetBufferForSize(size)
		if len(*b) != 0 {
			t.Errorf("Size %d: expected an empty buffer, got length %d", size, len(*b))
		}
		if cap(*b) < size {
			t.Errorf("Size %d: capacity %d is too small", size, cap(*b))
		}
		PutBufferForSize(b)
	}
}
