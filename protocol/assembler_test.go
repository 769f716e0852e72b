package protocol

import (
	"errors"
	"testing"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

func publishFrames(t *testing.T, body string, fragment int) []FrameValue {
	t.Helper()
	props := NewBasicProperties()
	_ = props.Set("content_type", "text/plain")

	frames := []FrameValue{
		MethodFrame{Method: mustMethod(t, "Basic.Publish", map[string]interface{}{"routing_key": "q"})},
		HeaderFrame{Header: NewContentHeader(ClassBasic, uint64(len(body)), props)},
	}
	for len(body) > 0 {
		n := min(fragment, len(body))
		frames = append(frames, BodyFrame{Payload: []byte(body[:n])})
		body = body[n:]
	}
	return frames
}

func feedAll(t *testing.T, a *Assembler, channel uint16, frames []FrameValue) []*Message {
	t.Helper()
	var out []*Message
	for _, f := range frames {
		msg, err := a.Feed(channel, f)
		if err != nil {
			t.Fatalf("Feed(%v): %v", f, err)
		}
		if msg != nil {
			out = append(out, msg)
		}
	}
	return out
}

func TestAssemblerContentMessage(t *testing.T) {
	a := NewAssembler()
	msgs := feedAll(t, a, 1, publishFrames(t, "hello world", 4))

	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Channel != 1 || msg.Method.Name() != "Basic.Publish" || !msg.HasContent() {
		t.Errorf("Unexpected message %v", msg)
	}
	if string(msg.Body) != "hello world" {
		t.Errorf("Expected body %q, got %q", "hello world", msg.Body)
	}
	if msg.Header.Properties.ContentType() != "text/plain" {
		t.Errorf("Unexpected properties %v", msg.Header.Properties.Map())
	}
	if a.Pending(1) {
		t.Error("Channel still pending after completion")
	}
}

func TestAssemblerNonContentMethod(t *testing.T) {
	a := NewAssembler()
	msg, err := a.Feed(0, MethodFrame{Method: mustMethod(t, "Connection.CloseOk", nil)})
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil || msg.HasContent() {
		t.Fatalf("Expected an immediate message without content, got %v", msg)
	}
}

func TestAssemblerEmptyBody(t *testing.T) {
	a := NewAssembler()
	msgs := feedAll(t, a, 2, publishFrames(t, "", 1))
	if len(msgs) != 1 || len(msgs[0].Body) != 0 {
		t.Fatalf("Expected one message with an empty body, got %v", msgs)
	}
}

func TestAssemblerInterleavedChannels(t *testing.T) {
	a := NewAssembler()
	one := publishFrames(t, "first", 2)
	two := publishFrames(t, "second", 3)

	var got []*Message
	for i := 0; i < max(len(one), len(two)); i++ {
		if i < len(one) {
			got = append(got, feedAll(t, a, 1, one[i:i+1])...)
		}
		if i < len(two) {
			got = append(got, feedAll(t, a, 2, two[i:i+1])...)
		}
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got))
	}
	bodies := map[uint16]string{got[0].Channel: string(got[0].Body), got[1].Channel: string(got[1].Body)}
	if bodies[1] != "first" || bodies[2] != "second" {
		t.Errorf("Unexpected bodies %v", bodies)
	}
}

func TestAssemblerIgnoresHeartbeats(t *testing.T) {
	a := NewAssembler()
	frames := publishFrames(t, "abc", 1)
	frames = append(frames[:2], append([]FrameValue{HeartbeatFrame{}}, frames[2:]...)...)

	if msgs := feedAll(t, a, 1, frames); len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msg, err := a.Feed(0, DefaultProtocolHeader); msg != nil || err != nil {
		t.Errorf("Expected protocol header to be ignored, got %v, %v", msg, err)
	}
}

func TestAssemblerUnexpectedFrames(t *testing.T) {
	publish := MethodFrame{Method: mustMethod(t, "Basic.Publish", nil)}
	header := HeaderFrame{Header: NewContentHeader(ClassBasic, 2, nil)}

	tests := []struct {
		name   string
		frames []FrameValue
	}{
		{"body without header", []FrameValue{BodyFrame{Payload: []byte("x")}}},
		{"header without method", []FrameValue{header}},
		{"method while content pending", []FrameValue{publish, header, publish}},
		{"duplicate header", []FrameValue{publish, header, header}},
		{"class mismatch", []FrameValue{publish, HeaderFrame{Header: NewContentHeader(ClassQueue, 2, nil)}}},
		{"body overrun", []FrameValue{publish, header, BodyFrame{Payload: []byte("xyz")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			var err error
			for _, f := range tt.frames {
				if _, err = a.Feed(1, f); err != nil {
					break
				}
			}
			if !errors.Is(err, amqperrors.ErrUnexpectedFrame) {
				t.Errorf("Expected ErrUnexpectedFrame, got %v", err)
			}
			if amqperrors.ReplyCode(err) != amqperrors.UnexpectedFrame {
				t.Errorf("Expected reply code 505, got %d", amqperrors.ReplyCode(err))
			}
		})
	}
}

func TestAssemblerReset(t *testing.T) {
	a := NewAssembler()
	frames := publishFrames(t, "abcd", 2)
	feedAll(t, a, 5, frames[:3])
	if !a.Pending(5) {
		t.Fatal("Expected channel 5 to be pending")
	}

	a.Reset(5)
	if a.Pending(5) {
		t.Error("Reset did not drop the partial message")
	}
	if msgs := feedAll(t, a, 5, frames); len(msgs) != 1 {
		t.Errorf("Expected a fresh message after reset, got %d", len(msgs))
	}
}
