package errors

import (
	"errors"
	"fmt"
)

// AMQPError represents a general AMQP error
type AMQPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Method  string `json:"method,omitempty"`
	Cause   error  `json:"cause,omitempty"`
}

func (e *AMQPError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("AMQP Error %d in %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("AMQP Error %d: %s", e.Code, e.Message)
}

func (e *AMQPError) Unwrap() error {
	return e.Cause
}

// AMQP 0-9-1 reply codes used by the codec
const (
	ReplySuccess    = 200
	ContentTooLarge = 311

	FrameError      = 501
	SyntaxError     = 502
	CommandInvalid  = 503
	ChannelError    = 504
	UnexpectedFrame = 505
	ResourceError   = 506
	NotAllowed      = 530
	NotImplemented  = 540
	InternalError   = 541
)

// Error kinds. Errors produced by the codec match their kind, and the kind of
// any wrapped cause, through errors.Is.
var (
	// ErrIncomplete is advisory: buffer more bytes and retry the same call.
	ErrIncomplete = errors.New("incomplete frame")

	ErrTruncated        = errors.New("truncated data")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrInvalidFrameEnd  = errors.New("invalid frame end")
	ErrMalformedTable   = errors.New("malformed field table")
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrUnknownMethod    = errors.New("unknown method")
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrUnsupportedValue = errors.New("unsupported value")
	ErrUnexpectedFrame  = errors.New("unexpected frame")
)

// Protocol Errors

// ProtocolError represents protocol-specific errors
type ProtocolError struct {
	AMQPError
	Kind      error  `json:"-"`
	FrameType byte   `json:"frame_type,omitempty"`
	ClassID   uint16 `json:"class_id,omitempty"`
	MethodID  uint16 `json:"method_id,omitempty"`
}

// Is reports whether target is the error kind of e. An invalid frame end is
// also a malformed frame.
func (e *ProtocolError) Is(target error) bool {
	if e.Kind == nil {
		return false
	}
	if e.Kind == ErrInvalidFrameEnd && target == ErrMalformedFrame {
		return true
	}
	return e.Kind == target
}

func (e *ProtocolError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = &e.AMQPError
		return true
	}
	return false
}

func NewProtocolError(kind error, code int, message string, frameType byte, classID, methodID uint16) *ProtocolError {
	return &ProtocolError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		Kind:      kind,
		FrameType: frameType,
		ClassID:   classID,
		MethodID:  methodID,
	}
}

// WithCause attaches the underlying error and returns e.
func (e *ProtocolError) WithCause(cause error) *ProtocolError {
	e.Cause = cause
	return e
}

// WithMethod records the method name the error occurred in and returns e.
func (e *ProtocolError) WithMethod(name string) *ProtocolError {
	e.Method = name
	return e
}

// NewIncomplete signals that more bytes are required.
func NewIncomplete(need, have int) *ProtocolError {
	message := fmt.Sprintf("Incomplete: need %d bytes, have %d", need, have)
	return NewProtocolError(ErrIncomplete, 0, message, 0, 0, 0)
}

func NewTruncated(what string, need, have int) *ProtocolError {
	message := fmt.Sprintf("Truncated %s: need %d bytes, have %d", what, need, have)
	return NewProtocolError(ErrTruncated, SyntaxError, message, 0, 0, 0)
}

func NewFrameError(message string, frameType byte) *ProtocolError {
	return NewProtocolError(ErrMalformedFrame, FrameError, fmt.Sprintf("Frame error: %s", message), frameType, 0, 0)
}

func NewInvalidFrameEnd(frameType byte, got byte) *ProtocolError {
	message := fmt.Sprintf("Invalid frame end: expected 0xCE, got 0x%02X", got)
	return NewProtocolError(ErrInvalidFrameEnd, FrameError, message, frameType, 0, 0)
}

func NewMalformedTable(message string) *ProtocolError {
	return NewProtocolError(ErrMalformedTable, SyntaxError, fmt.Sprintf("Malformed table: %s", message), 0, 0, 0)
}

func NewUnknownFrameType(frameType byte) *ProtocolError {
	return NewProtocolError(ErrUnknownFrameType, FrameError, fmt.Sprintf("Unknown frame type: %d", frameType), frameType, 0, 0)
}

func NewUnknownMethod(classID, methodID uint16) *ProtocolError {
	message := fmt.Sprintf("Unknown method %d.%d", classID, methodID)
	return NewProtocolError(ErrUnknownMethod, CommandInvalid, message, 1, classID, methodID)
}

func NewUnknownFieldType(tag byte) *ProtocolError {
	return NewProtocolError(ErrUnknownFieldType, SyntaxError, fmt.Sprintf("Unknown field type: %q", tag), 0, 0, 0)
}

func NewUnsupportedValue(format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(ErrUnsupportedValue, InternalError, fmt.Sprintf("Unsupported value: "+format, args...), 0, 0, 0)
}

func NewUnexpectedFrame(channel uint16, frameType byte, reason string) *ProtocolError {
	message := fmt.Sprintf("Unexpected frame type %d on channel %d: %s", frameType, channel, reason)
	return NewProtocolError(ErrUnexpectedFrame, UnexpectedFrame, message, frameType, 0, 0)
}

// Helper functions for common error checking

// IsIncomplete reports whether err only asks for more input.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// IsFatal reports whether err means the byte stream can no longer be trusted.
// Everything except Incomplete and UnsupportedValue is connection-fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrIncomplete) && !errors.Is(err, ErrUnsupportedValue)
}

// IsProtocolError checks if an error is a ProtocolError
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// ReplyCode returns the AMQP reply code carried by err, or InternalError
// when err does not carry one.
func ReplyCode(err error) int {
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) && protoErr.Code != 0 {
		return protoErr.Code
	}
	var amqpErr *AMQPError
	if errors.As(err, &amqpErr) && amqpErr.Code != 0 {
		return amqpErr.Code
	}
	return InternalError
}

// KindName returns a short label for the error kind of err, used as a
// metrics label.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIncomplete):
		return "incomplete"
	case errors.Is(err, ErrInvalidFrameEnd):
		return "invalid_frame_end"
	case errors.Is(err, ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrMalformedTable):
		return "malformed_table"
	case errors.Is(err, ErrUnknownFrameType):
		return "unknown_frame_type"
	case errors.Is(err, ErrUnknownMethod):
		return "unknown_method"
	case errors.Is(err, ErrUnknownFieldType):
		return "unknown_field_type"
	case errors.Is(err, ErrUnsupportedValue):
		return "unsupported_value"
	case errors.Is(err, ErrUnexpectedFrame):
		return "unexpected_frame"
	default:
		return "other"
	}
}
