package protocol

import (
	"encoding/binary"
	"errors"
	"maps"
	"math"
	"slices"
	"time"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// DecodeFieldTable decodes a length-prefixed field table. Decoding stops
// exactly at the declared boundary; an entry that runs past it is
// ErrMalformedTable. A buffer shorter than the declared length is ErrTruncated.
func DecodeFieldTable(data []byte) (int, Table, error) {
	end, body, err := compoundBody("field table", data)
	if err != nil {
		return 0, nil, err
	}

	table := make(Table)
	offset := 0
	for offset < len(body) {
		n, key, err := DecodeShortString(body[offset:])
		if err != nil {
			return 0, nil, boundaryError("field table key", err)
		}
		offset += n

		n, value, err := DecodeValue(body[offset:])
		if err != nil {
			return 0, nil, boundaryError("field table value for key "+key, err)
		}
		offset += n

		table[key] = value
	}

	return end, table, nil
}

// DecodeFieldArray decodes a length-prefixed field array.
func DecodeFieldArray(data []byte) (int, Array, error) {
	end, body, err := compoundBody("field array", data)
	if err != nil {
		return 0, nil, err
	}

	array := Array{}
	offset := 0
	for offset < len(body) {
		n, value, err := DecodeValue(body[offset:])
		if err != nil {
			return 0, nil, boundaryError("field array element", err)
		}
		offset += n
		array = append(array, value)
	}

	return end, array, nil
}

// compoundBody returns the total encoded size and the bytes inside the length
// prefix of a table or array.
func compoundBody(what string, data []byte) (int, []byte, error) {
	if err := need(what+" length", data, 4); err != nil {
		return 0, nil, err
	}
	length := uint64(binary.BigEndian.Uint32(data))
	if uint64(len(data)-4) < length {
		return 0, nil, amqperrors.NewTruncated(what, int(4+length), len(data))
	}
	end := 4 + int(length)
	return end, data[4:end], nil
}

// boundaryError converts a truncation inside a fully buffered table into a
// malformed table error; other errors pass through.
func boundaryError(what string, err error) error {
	if errors.Is(err, amqperrors.ErrTruncated) {
		return amqperrors.NewMalformedTable(what + " overruns declared length").WithCause(err)
	}
	return err
}

// DecodeValue decodes one self-describing value: a type tag followed by the
// value. The returned count includes the tag byte.
func DecodeValue(data []byte) (int, Value, error) {
	if err := need("field value tag", data, 1); err != nil {
		return 0, nil, err
	}
	tag, rest := data[0], data[1:]

	var (
		n     int
		value Value
		err   error
	)
	switch tag {
	case TagArray:
		var v Array
		n, v, err = DecodeFieldArray(rest)
		value = v
	case TagDecimal:
		var v Decimal
		n, v, err = DecodeDecimal(rest)
		value = v
	case TagFloat:
		var v float32
		n, v, err = DecodeFloat(rest)
		value = Float(v)
	case TagTable:
		var v Table
		n, v, err = DecodeFieldTable(rest)
		value = v
	case TagLongInt:
		var v int32
		n, v, err = DecodeLong(rest)
		value = LongInt(v)
	case TagLongLongInt:
		var v int64
		n, v, err = DecodeLongLong(rest)
		value = LongLongInt(v)
	case TagBool:
		var v bool
		n, v, err = DecodeBool(rest)
		value = Bool(v)
	case TagTimestamp:
		var v time.Time
		n, v, err = DecodeTimestamp(rest)
		value = Timestamp(v)
	case TagShortString:
		var v string
		n, v, err = DecodeShortString(rest)
		value = ShortString(v)
	case TagLongString:
		var v string
		n, v, err = DecodeLongString(rest)
		value = LongString(v)
	case TagShortInt:
		var v uint16
		n, v, err = DecodeShort(rest)
		value = ShortInt(v)
	case TagNull:
		value = Null{}
	default:
		return 0, nil, amqperrors.NewUnknownFieldType(tag)
	}
	if err != nil {
		return 0, nil, err
	}
	return 1 + n, value, nil
}

// EncodeFieldTable returns the wire form of a field table.
func EncodeFieldTable(table Table) ([]byte, error) {
	return AppendFieldTable(nil, table)
}

// AppendFieldTable appends a length-prefixed field table to dst. Keys are
// written in sorted order so the encoding is deterministic. On error dst is
// returned unchanged.
func AppendFieldTable(dst []byte, table Table) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)

	var err error
	for _, key := range slices.Sorted(maps.Keys(table)) {
		if dst, err = AppendShortString(dst, key); err != nil {
			return dst[:start], amqperrors.NewUnsupportedValue("field table key: %v", err)
		}
		if dst, err = AppendValue(dst, table[key]); err != nil {
			return dst[:start], err
		}
	}

	return patchLength(dst, start)
}

// AppendFieldArray appends a length-prefixed field array to dst.
func AppendFieldArray(dst []byte, array Array) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)

	var err error
	for _, value := range array {
		if dst, err = AppendValue(dst, value); err != nil {
			return dst[:start], err
		}
	}

	return patchLength(dst, start)
}

func patchLength(dst []byte, start int) ([]byte, error) {
	length := len(dst) - start - 4
	if uint64(length) > math.MaxUint32 {
		return dst[:start], amqperrors.NewUnsupportedValue("compound value of %d bytes exceeds 4GiB", length)
	}
	binary.BigEndian.PutUint32(dst[start:start+4], uint32(length))
	return dst, nil
}

// AppendValue appends the tag and wire form of a self-describing value.
func AppendValue(dst []byte, value Value) ([]byte, error) {
	start := len(dst)
	if value == nil {
		return dst, amqperrors.NewUnsupportedValue("nil field value")
	}
	dst = append(dst, value.Tag())

	var err error
	switch v := value.(type) {
	case Array:
		dst, err = AppendFieldArray(dst, v)
	case Decimal:
		dst = AppendDecimal(dst, v)
	case Float:
		dst = AppendFloat(dst, float32(v))
	case Table:
		dst, err = AppendFieldTable(dst, v)
	case LongInt:
		dst = AppendLong(dst, int32(v))
	case LongLongInt:
		dst = AppendLongLong(dst, int64(v))
	case Bool:
		dst = AppendBool(dst, bool(v))
	case Timestamp:
		dst, err = AppendTimestamp(dst, time.Time(v))
	case ShortString:
		dst, err = AppendShortString(dst, string(v))
	case LongString:
		dst, err = AppendLongString(dst, string(v))
	case ShortInt:
		dst = AppendShort(dst, uint16(v))
	case Null:
	default:
		err = amqperrors.NewUnsupportedValue("no encoder for %T", value)
	}
	if err != nil {
		return dst[:start], err
	}
	return dst, nil
}
