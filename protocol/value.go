package protocol

import (
	"math"
	"math/big"
	"time"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// Field value type tags used inside field tables and arrays
const (
	TagArray       = 'A'
	TagDecimal     = 'D'
	TagFloat       = 'f'
	TagTable       = 'F'
	TagLongInt     = 'I'
	TagLongLongInt = 'L'
	TagBool        = 't'
	TagTimestamp   = 'T'
	TagShortString = 's'
	TagLongString  = 'S'
	TagShortInt    = 'U'
	TagNull        = 0x00
)

// Value is a self-describing field table or field array value. The set of
// implementations is closed; switch on the concrete type.
type Value interface {
	// Tag returns the one-byte type tag written before the value.
	Tag() byte
	// Native returns the value as a plain Go value.
	Native() interface{}
}

type (
	Bool        bool
	ShortInt    uint16
	LongInt     int32
	LongLongInt int64
	Float       float32
	ShortString string
	LongString  string
	Null        struct{}

	// Timestamp is second-precision POSIX time, always UTC.
	Timestamp time.Time

	// Table is a field table keyed by short strings.
	Table map[string]Value

	// Array is an ordered field array.
	Array []Value
)

// Decimal is mantissa * 10^-Scale.
type Decimal struct {
	Scale uint8
	Value int32
}

func (Bool) Tag() byte        { return TagBool }
func (ShortInt) Tag() byte    { return TagShortInt }
func (LongInt) Tag() byte     { return TagLongInt }
func (LongLongInt) Tag() byte { return TagLongLongInt }
func (Float) Tag() byte       { return TagFloat }
func (Decimal) Tag() byte     { return TagDecimal }
func (Timestamp) Tag() byte   { return TagTimestamp }
func (ShortString) Tag() byte { return TagShortString }
func (LongString) Tag() byte  { return TagLongString }
func (Table) Tag() byte       { return TagTable }
func (Array) Tag() byte       { return TagArray }
func (Null) Tag() byte        { return TagNull }

func (v Bool) Native() interface{}        { return bool(v) }
func (v ShortInt) Native() interface{}    { return uint16(v) }
func (v LongInt) Native() interface{}     { return int32(v) }
func (v LongLongInt) Native() interface{} { return int64(v) }
func (v Float) Native() interface{}       { return float32(v) }
func (v Decimal) Native() interface{}     { return v }
func (v Timestamp) Native() interface{}   { return time.Time(v) }
func (v ShortString) Native() interface{} { return string(v) }
func (v LongString) Native() interface{}  { return string(v) }
func (Null) Native() interface{}          { return nil }

func (t Table) Native() interface{} {
	out := make(map[string]interface{}, len(t))
	for k, v := range t {
		out[k] = v.Native()
	}
	return out
}

func (a Array) Native() interface{} {
	out := make([]interface{}, len(a))
	for i, v := range a {
		out[i] = v.Native()
	}
	return out
}

// Rat returns the exact rational value of d.
func (d Decimal) Rat() *big.Rat {
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return new(big.Rat).SetFrac(big.NewInt(int64(d.Value)), denom)
}

// String formats d in plain decimal notation, e.g. {2, 314} is "3.14".
func (d Decimal) String() string {
	return d.Rat().FloatString(int(d.Scale))
}

// NewTimestamp truncates t to whole seconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(time.Unix(t.Unix(), 0).UTC())
}

// Time returns the timestamp as a time.Time.
func (v Timestamp) Time() time.Time {
	return time.Time(v)
}

// NewValue converts a native Go value into its field value. Integers are
// encoded as the smallest signed type that holds them (long, then long-long).
func NewValue(v interface{}) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return LongString(val), nil
	case []byte:
		return LongString(val), nil
	case int:
		return intValue(int64(val)), nil
	case int8:
		return LongInt(val), nil
	case int16:
		return LongInt(val), nil
	case int32:
		return LongInt(val), nil
	case int64:
		return intValue(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return LongInt(val), nil
	case uint16:
		return LongInt(val), nil
	case uint32:
		return intValue(int64(val)), nil
	case uint64:
		return uintValue(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case time.Time:
		return NewTimestamp(val), nil
	case map[string]interface{}:
		return NewTable(val)
	case []interface{}:
		arr := make(Array, len(val))
		for i, item := range val {
			fv, err := NewValue(item)
			if err != nil {
				return nil, err
			}
			arr[i] = fv
		}
		return arr, nil
	default:
		return nil, amqperrors.NewUnsupportedValue("no field type for %T", v)
	}
}

// NewTable converts a map of native Go values into a Table.
func NewTable(m map[string]interface{}) (Table, error) {
	table := make(Table, len(m))
	for k, v := range m {
		fv, err := NewValue(v)
		if err != nil {
			return nil, amqperrors.NewUnsupportedValue("table key %q: %v", k, err)
		}
		table[k] = fv
	}
	return table, nil
}

func intValue(v int64) Value {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return LongInt(v)
	}
	return LongLongInt(v)
}

func uintValue(v uint64) (Value, error) {
	if v > math.MaxInt64 {
		return nil, amqperrors.NewUnsupportedValue("integer %d exceeds signed 64-bit range", v)
	}
	return intValue(int64(v)), nil
}
