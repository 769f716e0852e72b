package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAMQPError(t *testing.T) {
	err := &AMQPError{
		Code:    FrameError,
		Message: "Frame error: bad size",
		Method:  "Basic.Publish",
	}

	assert.Equal(t, "AMQP Error 501 in Basic.Publish: Frame error: bad size", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestAMQPErrorWithoutMethod(t *testing.T) {
	err := &AMQPError{
		Code:    InternalError,
		Message: "Internal error",
	}

	assert.Equal(t, "AMQP Error 541: Internal error", err.Error())
}

func TestProtocolError(t *testing.T) {
	err := NewProtocolError(ErrMalformedFrame, FrameError, "Invalid frame format", 1, 10, 20)

	assert.Equal(t, FrameError, err.Code)
	assert.Equal(t, "Invalid frame format", err.Message)
	assert.Equal(t, byte(1), err.FrameType)
	assert.Equal(t, uint16(10), err.ClassID)
	assert.Equal(t, uint16(20), err.MethodID)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.False(t, errors.Is(err, ErrIncomplete))
}

func TestInvalidFrameEndIsMalformed(t *testing.T) {
	err := NewInvalidFrameEnd(1, 0xFF)

	assert.True(t, errors.Is(err, ErrInvalidFrameEnd))
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.Contains(t, err.Message, "0xFF")
	assert.Equal(t, "invalid_frame_end", KindName(err))
}

func TestFrameErrorWrapsCause(t *testing.T) {
	cause := NewTruncated("short string", 10, 3)
	err := NewFrameError("method arguments", 1).WithCause(cause).WithMethod("Basic.Cancel")

	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.True(t, errors.Is(err, ErrTruncated))
	assert.Equal(t, "malformed_frame", KindName(err))
	assert.Contains(t, err.Error(), "Basic.Cancel")
}

func TestUnknownMethod(t *testing.T) {
	err := NewUnknownMethod(60, 255)

	assert.Equal(t, CommandInvalid, err.Code)
	assert.Equal(t, uint16(60), err.ClassID)
	assert.Equal(t, uint16(255), err.MethodID)
	assert.Contains(t, err.Message, "60.255")
}

func TestUnexpectedFrameError(t *testing.T) {
	err := NewUnexpectedFrame(1, 3, "no content method")

	assert.Equal(t, UnexpectedFrame, err.Code)
	assert.Equal(t, byte(3), err.FrameType)
	assert.Contains(t, err.Message, "channel 1")
}

func TestIsIncompleteAndFatal(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		incomplete bool
		fatal      bool
	}{
		{"nil", nil, false, false},
		{"incomplete", NewIncomplete(8, 4), true, false},
		{"wrapped incomplete", fmt.Errorf("read: %w", NewIncomplete(8, 4)), true, false},
		{"frame end", NewInvalidFrameEnd(1, 0), false, true},
		{"unknown frame type", NewUnknownFrameType(9), false, true},
		{"unknown field type", NewUnknownFieldType('Z'), false, true},
		{"unsupported value", NewUnsupportedValue("%T", struct{}{}), false, false},
		{"plain error", errors.New("boom"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.incomplete, IsIncomplete(tt.err))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestReplyCode(t *testing.T) {
	assert.Equal(t, FrameError, ReplyCode(NewFrameError("x", 1)))
	assert.Equal(t, SyntaxError, ReplyCode(fmt.Errorf("decode: %w", NewUnknownFieldType('Z'))))
	assert.Equal(t, UnexpectedFrame, ReplyCode(NewUnexpectedFrame(1, 2, "x")))
	assert.Equal(t, InternalError, ReplyCode(errors.New("generic error")))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "", KindName(nil))
	assert.Equal(t, "incomplete", KindName(NewIncomplete(1, 0)))
	assert.Equal(t, "malformed_table", KindName(NewMalformedTable("overrun")))
	assert.Equal(t, "unknown_method", KindName(NewUnknownMethod(1, 1)))
	assert.Equal(t, "other", KindName(errors.New("x")))
}

func TestErrorChaining(t *testing.T) {
	protoErr := NewUnknownFrameType(42)
	wrapperErr := fmt.Errorf("reader: %w", protoErr)

	var pErr *ProtocolError
	assert.True(t, errors.As(wrapperErr, &pErr))
	assert.Equal(t, byte(42), pErr.FrameType)

	var amqpErr *AMQPError
	if assert.True(t, errors.As(wrapperErr, &amqpErr)) {
		assert.Equal(t, FrameError, amqpErr.Code)
	}
	assert.True(t, IsProtocolError(wrapperErr))
}
