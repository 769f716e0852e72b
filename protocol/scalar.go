package protocol

import (
	"encoding/binary"
	"math"
	"time"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// Scalar decoders. Each returns the number of bytes consumed and the value.
// A buffer shorter than the encoded value yields an ErrTruncated error.

func need(what string, data []byte, n int) error {
	if len(data) < n {
		return amqperrors.NewTruncated(what, n, len(data))
	}
	return nil
}

// DecodeOctet decodes a single unsigned byte.
func DecodeOctet(data []byte) (int, uint8, error) {
	if err := need("octet", data, 1); err != nil {
		return 0, 0, err
	}
	return 1, data[0], nil
}

// DecodeShort decodes a big-endian unsigned 16-bit integer.
func DecodeShort(data []byte) (int, uint16, error) {
	if err := need("short", data, 2); err != nil {
		return 0, 0, err
	}
	return 2, binary.BigEndian.Uint16(data), nil
}

// DecodeLong decodes a big-endian signed 32-bit integer.
func DecodeLong(data []byte) (int, int32, error) {
	if err := need("long", data, 4); err != nil {
		return 0, 0, err
	}
	return 4, int32(binary.BigEndian.Uint32(data)), nil
}

// DecodeLongLong decodes a big-endian signed 64-bit integer.
func DecodeLongLong(data []byte) (int, int64, error) {
	if err := need("longlong", data, 8); err != nil {
		return 0, 0, err
	}
	return 8, int64(binary.BigEndian.Uint64(data)), nil
}

// DecodeBool decodes a one byte boolean; any non-zero byte is true.
func DecodeBool(data []byte) (int, bool, error) {
	if err := need("boolean", data, 1); err != nil {
		return 0, false, err
	}
	return 1, data[0] != 0, nil
}

// DecodeFloat decodes a big-endian IEEE-754 single precision float.
func DecodeFloat(data []byte) (int, float32, error) {
	if err := need("float", data, 4); err != nil {
		return 0, 0, err
	}
	return 4, math.Float32frombits(binary.BigEndian.Uint32(data)), nil
}

// DecodeDecimal decodes a scale octet followed by a signed 32-bit mantissa.
func DecodeDecimal(data []byte) (int, Decimal, error) {
	if err := need("decimal", data, 5); err != nil {
		return 0, Decimal{}, err
	}
	return 5, Decimal{
		Scale: data[0],
		Value: int32(binary.BigEndian.Uint32(data[1:5])),
	}, nil
}

// DecodeTimestamp decodes unsigned 64-bit POSIX seconds as UTC time.
// Seconds above MaxInt64 have no time.Time and are ErrUnsupportedValue.
func DecodeTimestamp(data []byte) (int, time.Time, error) {
	if err := need("timestamp", data, 8); err != nil {
		return 0, time.Time{}, err
	}
	secs := binary.BigEndian.Uint64(data)
	if secs > math.MaxInt64 {
		return 0, time.Time{}, amqperrors.NewUnsupportedValue("timestamp %d seconds out of range", secs)
	}
	return 8, time.Unix(int64(secs), 0).UTC(), nil
}

// DecodeShortString decodes a string with a one byte length prefix.
func DecodeShortString(data []byte) (int, string, error) {
	if err := need("short string length", data, 1); err != nil {
		return 0, "", err
	}
	length := int(data[0])
	if err := need("short string", data, 1+length); err != nil {
		return 0, "", err
	}
	return 1 + length, string(data[1 : 1+length]), nil
}

// DecodeLongString decodes a string with a four byte big-endian length prefix.
func DecodeLongString(data []byte) (int, string, error) {
	if err := need("long string length", data, 4); err != nil {
		return 0, "", err
	}
	length := uint64(binary.BigEndian.Uint32(data))
	if uint64(len(data)-4) < length {
		return 0, "", amqperrors.NewTruncated("long string", int(4+length), len(data))
	}
	end := 4 + int(length)
	return end, string(data[4:end]), nil
}

// Scalar encoders append the wire form of a value to dst.

func AppendOctet(dst []byte, v uint8) []byte {
	return append(dst, v)
}

func AppendShort(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

func AppendLong(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

func AppendLongLong(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v))
}

func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func AppendFloat(dst []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
}

func AppendDecimal(dst []byte, v Decimal) []byte {
	dst = append(dst, v.Scale)
	return binary.BigEndian.AppendUint32(dst, uint32(v.Value))
}

// AppendTimestamp writes t as whole POSIX seconds. Times before the epoch
// have no wire representation.
func AppendTimestamp(dst []byte, t time.Time) ([]byte, error) {
	secs := t.Unix()
	if secs < 0 {
		return dst, amqperrors.NewUnsupportedValue("timestamp %s before the epoch", t.UTC().Format(time.RFC3339))
	}
	return binary.BigEndian.AppendUint64(dst, uint64(secs)), nil
}

// AppendShortString writes s with a one byte length prefix. Strings longer
// than 255 bytes are rejected rather than truncated.
func AppendShortString(dst []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint8 {
		return dst, amqperrors.NewUnsupportedValue("short string of %d bytes exceeds 255", len(s))
	}
	dst = append(dst, byte(len(s)))
	return append(dst, s...), nil
}

// AppendLongString writes s with a four byte length prefix.
func AppendLongString(dst []byte, s string) ([]byte, error) {
	if uint64(len(s)) > math.MaxUint32 {
		return dst, amqperrors.NewUnsupportedValue("long string of %d bytes exceeds 4GiB", len(s))
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...), nil
}

// EncodeShortString returns the wire form of a short string.
func EncodeShortString(s string) ([]byte, error) {
	return AppendShortString(make([]byte, 0, 1+len(s)), s)
}

// EncodeLongString returns the wire form of a long string.
func EncodeLongString(s string) ([]byte, error) {
	return AppendLongString(make([]byte, 0, 4+len(s)), s)
}
