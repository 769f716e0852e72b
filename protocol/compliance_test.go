package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

// TestAMQPCompliance_FrameFormat validates the AMQP 0.9.1 frame layout:
// type(1) + channel(2) + size(4) + payload + frame-end(1)
func TestAMQPCompliance_FrameFormat(t *testing.T) {
	m, _ := BuildMethod("Channel.Open", nil)
	data, err := EncodeMethod(1, m)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}

	if data[0] != FrameMethod {
		t.Errorf("Expected frame type %d, got %d", FrameMethod, data[0])
	}
	if channel := binary.BigEndian.Uint16(data[1:3]); channel != 1 {
		t.Errorf("Expected channel 1, got %d", channel)
	}
	size := binary.BigEndian.Uint32(data[3:7])
	if int(size) != len(data)-FrameOverhead {
		t.Errorf("Expected size %d, got %d", len(data)-FrameOverhead, size)
	}
	if data[len(data)-1] != 0xCE {
		t.Errorf("Expected frame end 0xCE, got 0x%02X", data[len(data)-1])
	}
	// class 20, method 10, empty reserved shortstr
	if !bytes.Equal(data[7:len(data)-1], []byte{0x00, 0x14, 0x00, 0x0A, 0x00}) {
		t.Errorf("Unexpected payload % x", data[7:len(data)-1])
	}
}

// TestAMQPCompliance_ProtocolHeader validates "AMQP" + 0 + 0 + 9 + 1
func TestAMQPCompliance_ProtocolHeader(t *testing.T) {
	data, _ := EncodeFrame(0, DefaultProtocolHeader)
	if !bytes.Equal(data, []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}) {
		t.Errorf("Unexpected protocol header % x", data)
	}
	if len(data) != ProtocolHeaderSize {
		t.Errorf("Protocol header should be %d bytes, got %d", ProtocolHeaderSize, len(data))
	}
}

// TestAMQPCompliance_MethodFrameEncoding validates class-id(2) + method-id(2)
func TestAMQPCompliance_MethodFrameEncoding(t *testing.T) {
	tests := []struct {
		name     string
		classID  uint16
		methodID uint16
	}{
		{"Connection.Start", 10, 10},
		{"Connection.StartOk", 10, 11},
		{"Channel.Open", 20, 10},
		{"Exchange.Declare", 40, 10},
		{"Queue.Declare", 50, 10},
		{"Basic.Publish", 60, 40},
		{"Confirm.Select", 85, 10},
		{"Tx.Select", 90, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := BuildMethod(tt.name, nil)
			if err != nil {
				t.Fatal(err)
			}
			data, err := EncodeMethod(1, m)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			classID := binary.BigEndian.Uint16(data[7:9])
			methodID := binary.BigEndian.Uint16(data[9:11])
			if classID != tt.classID {
				t.Errorf("Expected class ID %d, got %d", tt.classID, classID)
			}
			if methodID != tt.methodID {
				t.Errorf("Expected method ID %d, got %d", tt.methodID, methodID)
			}
		})
	}
}

// TestAMQPCompliance_FrameTypes validates all AMQP frame types
func TestAMQPCompliance_FrameTypes(t *testing.T) {
	tests := []struct {
		name      string
		frameType byte
		expected  byte
	}{
		{"method", FrameMethod, 1},
		{"header", FrameHeader, 2},
		{"body", FrameBody, 3},
		{"heartbeat", FrameHeartbeat, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.frameType != tt.expected {
				t.Errorf("Frame type %s should be %d, got %d", tt.name, tt.expected, tt.frameType)
			}
			if FrameTypeName(tt.frameType) != tt.name {
				t.Errorf("Expected name %s, got %s", tt.name, FrameTypeName(tt.frameType))
			}
		})
	}
}

// TestAMQPCompliance_ClassIDs validates AMQP class IDs
func TestAMQPCompliance_ClassIDs(t *testing.T) {
	tests := []struct {
		class   string
		classID uint16
	}{
		{"Connection", 10},
		{"Channel", 20},
		{"Exchange", 40},
		{"Queue", 50},
		{"Basic", 60},
		{"Confirm", 85},
		{"Tx", 90},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			found := false
			for _, def := range Methods() {
				if def.ClassID == tt.classID {
					found = true
					if prefix := tt.class + "."; len(def.Name) <= len(prefix) || def.Name[:len(prefix)] != prefix {
						t.Errorf("Method %s registered under class %d", def.Name, tt.classID)
					}
				}
			}
			if !found {
				t.Errorf("No methods registered for class %d", tt.classID)
			}
		})
	}
}

// TestAMQPCompliance_PropertyFlags validates Basic property flag positions
func TestAMQPCompliance_PropertyFlags(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected uint16
	}{
		{"content_type", "x", 0x8000},
		{"content_encoding", "x", 0x4000},
		{"headers", Table{}, 0x2000},
		{"delivery_mode", Persistent, 0x1000},
		{"priority", 1, 0x0800},
		{"correlation_id", "x", 0x0400},
		{"reply_to", "x", 0x0200},
		{"expiration", "x", 0x0100},
		{"message_id", "x", 0x0080},
		{"timestamp", NewTimestamp(time.Unix(0, 0)), 0x0040},
		{"type", "x", 0x0020},
		{"user_id", "x", 0x0010},
		{"app_id", "x", 0x0008},
		{"cluster_id", "x", 0x0004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := NewBasicProperties()
			if err := props.Set(tt.name, tt.value); err != nil {
				t.Fatal(err)
			}
			if flags := props.Flags(); len(flags) != 1 || flags[0] != tt.expected {
				t.Errorf("Flag %s should be 0x%04X, got %x", tt.name, tt.expected, flags)
			}
		})
	}
}

// TestAMQPCompliance_DeliveryModes validates delivery mode values
func TestAMQPCompliance_DeliveryModes(t *testing.T) {
	tests := []struct {
		name       string
		mode       uint8
		persistent bool
	}{
		{"NonPersistent", Transient, false},
		{"Persistent", Persistent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := NewBasicProperties()
			_ = props.Set("delivery_mode", tt.mode)

			data, err := EncodeFrame(1, HeaderFrame{Header: NewContentHeader(ClassBasic, 100, props)})
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			_, _, frame, err := DecodeFrame(data)
			if err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}

			mode := frame.(HeaderFrame).Header.Properties.DeliveryMode()
			if mode != tt.mode {
				t.Errorf("Expected delivery mode %d, got %d", tt.mode, mode)
			}
			if (mode == 2) != tt.persistent {
				t.Errorf("Delivery mode %d persistence mismatch", tt.mode)
			}
		})
	}
}

// TestAMQPCompliance_FrameMaxSize validates that a body fragment sized for
// the default frame-max fits exactly.
func TestAMQPCompliance_FrameMaxSize(t *testing.T) {
	maxPayloadSize := DefaultFrameMax - FrameOverhead

	data, err := EncodeFrame(1, BodyFrame{Payload: make([]byte, maxPayloadSize)})
	if err != nil {
		t.Fatalf("Failed to encode large frame: %v", err)
	}
	if len(data) != DefaultFrameMax {
		t.Errorf("Frame size %d, expected %d", len(data), DefaultFrameMax)
	}

	decoder := FrameDecoder{MaxFrameSize: DefaultFrameMax}
	if _, _, _, err := decoder.Decode(data); err != nil {
		t.Errorf("Frame at frame-max rejected: %v", err)
	}
}
