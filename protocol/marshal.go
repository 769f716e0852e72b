package protocol

import (
	"time"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// Argument marshaling.
//
// Fields are written strictly in schema order with no tags. A run of
// consecutive bit fields shares octets: bits are packed least significant
// first, and the partial octet is flushed when eight bits are used, when a
// non-bit field follows, or at the end of the list.

// bitPacker accumulates consecutive bit fields into octets.
type bitPacker struct {
	octet byte
	count int
}

func (p *bitPacker) add(dst []byte, v bool) []byte {
	if p.count == 8 {
		dst = p.flush(dst)
	}
	if v {
		p.octet |= 1 << p.count
	}
	p.count++
	return dst
}

func (p *bitPacker) flush(dst []byte) []byte {
	if p.count == 0 {
		return dst
	}
	dst = append(dst, p.octet)
	p.octet, p.count = 0, 0
	return dst
}

// appendFields encodes values against defs. values must already hold the Go
// type declared for each field.
func appendFields(dst []byte, defs []FieldDef, values []interface{}) ([]byte, error) {
	start := len(dst)
	var bits bitPacker
	var err error

	for i, def := range defs {
		v := values[i]
		if def.Type == FieldBit {
			b, ok := v.(bool)
			if !ok {
				return dst[:start], fieldTypeError(def, v)
			}
			dst = bits.add(dst, b)
			continue
		}

		dst = bits.flush(dst)
		if dst, err = appendField(dst, def, v); err != nil {
			return dst[:start], err
		}
	}

	return bits.flush(dst), nil
}

// appendField encodes one non-bit field.
func appendField(dst []byte, def FieldDef, v interface{}) ([]byte, error) {
	var err error
	switch def.Type {
	case FieldOctet:
		n, ok := v.(uint8)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst = AppendOctet(dst, n)
	case FieldShort:
		n, ok := v.(uint16)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst = AppendShort(dst, n)
	case FieldLong:
		n, ok := v.(uint32)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst = AppendLong(dst, int32(n))
	case FieldLongLong:
		n, ok := v.(uint64)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst = AppendLongLong(dst, int64(n))
	case FieldShortString:
		s, ok := v.(string)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst, err = AppendShortString(dst, s)
	case FieldLongString:
		s, ok := v.(string)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst, err = AppendLongString(dst, s)
	case FieldTable:
		t, ok := v.(Table)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst, err = AppendFieldTable(dst, t)
	case FieldTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return dst, fieldTypeError(def, v)
		}
		dst, err = AppendTimestamp(dst, t)
	default:
		return dst, amqperrors.NewUnsupportedValue("field %s has unknown type %s", def.Name, def.Type)
	}
	if err != nil {
		return dst, amqperrors.NewUnsupportedValue("field %s: %v", def.Name, err).WithCause(err)
	}
	return dst, nil
}

// decodeFields decodes values for defs from data, mirroring appendFields. The
// returned count includes every octet used by packed bits.
func decodeFields(defs []FieldDef, data []byte) (int, []interface{}, error) {
	values := make([]interface{}, len(defs))
	offset := 0

	var (
		current   byte
		bitOffset int
		inBits    bool
	)

	for i, def := range defs {
		if def.Type == FieldBit {
			if !inBits || bitOffset == 8 {
				if err := need("packed bits", data[offset:], 1); err != nil {
					return 0, nil, err
				}
				current = data[offset]
				offset++
				bitOffset = 0
				inBits = true
			}
			values[i] = current&(1<<bitOffset) != 0
			bitOffset++
			continue
		}

		inBits = false
		n, v, err := decodeField(def, data[offset:])
		if err != nil {
			return 0, nil, err
		}
		values[i] = v
		offset += n
	}

	return offset, values, nil
}

// decodeField decodes one non-bit field into its Go representation.
func decodeField(def FieldDef, data []byte) (int, interface{}, error) {
	switch def.Type {
	case FieldOctet:
		return DecodeOctet(data)
	case FieldShort:
		return DecodeShort(data)
	case FieldLong:
		n, v, err := DecodeLong(data)
		return n, uint32(v), err
	case FieldLongLong:
		n, v, err := DecodeLongLong(data)
		return n, uint64(v), err
	case FieldShortString:
		return DecodeShortString(data)
	case FieldLongString:
		return DecodeLongString(data)
	case FieldTable:
		return DecodeFieldTable(data)
	case FieldTimestamp:
		return DecodeTimestamp(data)
	case FieldBit:
		return DecodeBool(data)
	default:
		return 0, nil, amqperrors.NewUnsupportedValue("field %s has unknown type %s", def.Name, def.Type)
	}
}

// zeroValue returns the Go zero value used for an unset field.
func zeroValue(t FieldType) interface{} {
	switch t {
	case FieldBit:
		return false
	case FieldOctet:
		return uint8(0)
	case FieldShort:
		return uint16(0)
	case FieldLong:
		return uint32(0)
	case FieldLongLong:
		return uint64(0)
	case FieldShortString, FieldLongString:
		return ""
	case FieldTable:
		return Table{}
	case FieldTimestamp:
		return time.Unix(0, 0).UTC()
	default:
		return nil
	}
}

func fieldTypeError(def FieldDef, v interface{}) error {
	return amqperrors.NewUnsupportedValue("field %s (%s) cannot hold %T", def.Name, def.Type, v)
}
