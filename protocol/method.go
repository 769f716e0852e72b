package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// Method is one instance of a method with its arguments held positionally
// in Def.Fields order. Argument types are:
//
//	bit        bool
//	octet      uint8
//	short      uint16
//	long       uint32
//	longlong   uint64
//	shortstr   string
//	longstr    string
//	table      Table
//	timestamp  time.Time
type Method struct {
	Def    *MethodDef
	values []interface{}
}

// NewMethod returns an instance of def with every argument zeroed.
func NewMethod(def *MethodDef) *Method {
	m := &Method{Def: def, values: make([]interface{}, len(def.Fields))}
	for i, f := range def.Fields {
		m.values[i] = zeroValue(f.Type)
	}
	return m
}

// BuildMethod creates the named method and sets the given arguments.
// Arguments not listed keep their zero value.
func BuildMethod(name string, args map[string]interface{}) (*Method, error) {
	def, ok := MethodByName(name)
	if !ok {
		return nil, amqperrors.NewUnsupportedValue("unknown method %q", name)
	}
	m := NewMethod(def)
	for k, v := range args {
		if err := m.Set(k, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Name returns the method name, e.g. "Basic.Deliver".
func (m *Method) Name() string {
	return m.Def.Name
}

// Set assigns an argument. Integers of any Go type are accepted when the
// value fits the field; tables may be given as map[string]interface{}.
func (m *Method) Set(name string, v interface{}) error {
	i := m.Def.FieldIndex(name)
	if i < 0 {
		return amqperrors.NewUnsupportedValue("%s has no field %q", m.Def.Name, name)
	}
	value, err := coerce(m.Def.Fields[i], v)
	if err != nil {
		return err
	}
	m.values[i] = value
	return nil
}

// Get returns the named argument.
func (m *Method) Get(name string) (interface{}, bool) {
	i := m.Def.FieldIndex(name)
	if i < 0 {
		return nil, false
	}
	return m.values[i], true
}

// Values returns the arguments in schema order.
func (m *Method) Values() []interface{} {
	return m.values
}

// Arguments returns the arguments keyed by field name.
func (m *Method) Arguments() map[string]interface{} {
	out := make(map[string]interface{}, len(m.values))
	for i, f := range m.Def.Fields {
		out[f.Name] = m.values[i]
	}
	return out
}

func (m *Method) Bool(name string) bool {
	v, _ := m.Get(name)
	b, _ := v.(bool)
	return b
}

func (m *Method) Uint8(name string) uint8 {
	v, _ := m.Get(name)
	n, _ := v.(uint8)
	return n
}

func (m *Method) Uint16(name string) uint16 {
	v, _ := m.Get(name)
	n, _ := v.(uint16)
	return n
}

func (m *Method) Uint32(name string) uint32 {
	v, _ := m.Get(name)
	n, _ := v.(uint32)
	return n
}

func (m *Method) Uint64(name string) uint64 {
	v, _ := m.Get(name)
	n, _ := v.(uint64)
	return n
}

// Text returns a shortstr or longstr argument.
func (m *Method) Text(name string) string {
	v, _ := m.Get(name)
	s, _ := v.(string)
	return s
}

func (m *Method) Table(name string) Table {
	v, _ := m.Get(name)
	t, _ := v.(Table)
	return t
}

func (m *Method) Time(name string) time.Time {
	v, _ := m.Get(name)
	t, _ := v.(time.Time)
	return t
}

// Encode returns the packed argument stream. The class and method id prefix
// is written by the frame layer.
func (m *Method) Encode() ([]byte, error) {
	data, err := appendFields(nil, m.Def.Fields, m.values)
	if err != nil {
		return nil, withMethod(err, m.Def)
	}
	return data, nil
}

// Describe formats the method and its arguments on one line.
func (m *Method) Describe() string {
	var sb strings.Builder
	sb.WriteString(m.Def.Name)
	sb.WriteByte('(')
	for i, f := range m.Def.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%s", f.Name, formatArgument(m.values[i]))
	}
	sb.WriteByte(')')
	return sb.String()
}

func formatArgument(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case Table:
		return fmt.Sprintf("%v", val.Native())
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// DecodeMethodArguments decodes the argument stream of def. The returned
// count includes packed bit octets.
func DecodeMethodArguments(def *MethodDef, data []byte) (int, *Method, error) {
	n, values, err := decodeFields(def.Fields, data)
	if err != nil {
		return 0, nil, withMethod(err, def)
	}
	return n, &Method{Def: def, values: values}, nil
}

func withMethod(err error, def *MethodDef) error {
	var pe *amqperrors.ProtocolError
	if errors.As(err, &pe) {
		pe.ClassID, pe.MethodID = def.ClassID, def.MethodID
		return pe.WithMethod(def.Name)
	}
	return err
}

// coerce converts v into the Go type declared for def.
func coerce(def FieldDef, v interface{}) (interface{}, error) {
	switch def.Type {
	case FieldBit:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FieldOctet:
		if n, ok := toUint64(v); ok && n <= math.MaxUint8 {
			return uint8(n), nil
		}
	case FieldShort:
		if n, ok := toUint64(v); ok && n <= math.MaxUint16 {
			return uint16(n), nil
		}
	case FieldLong:
		if n, ok := toUint64(v); ok && n <= math.MaxUint32 {
			return uint32(n), nil
		}
	case FieldLongLong:
		if n, ok := toUint64(v); ok {
			return n, nil
		}
	case FieldShortString:
		if s, ok := v.(string); ok {
			if len(s) > math.MaxUint8 {
				return nil, amqperrors.NewUnsupportedValue("field %s: short string of %d bytes exceeds 255", def.Name, len(s))
			}
			return s, nil
		}
	case FieldLongString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case FieldTable:
		switch t := v.(type) {
		case Table:
			return t, nil
		case map[string]interface{}:
			return NewTable(t)
		case nil:
			return Table{}, nil
		}
	case FieldTimestamp:
		switch t := v.(type) {
		case time.Time:
			return time.Unix(t.Unix(), 0).UTC(), nil
		case Timestamp:
			return t.Time(), nil
		}
	}
	return nil, fieldTypeError(def, v)
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int8:
		return uint64(n), n >= 0
	case int16:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case float64:
		// numbers decoded from JSON
		if n >= 0 && n < math.MaxUint64 && n == math.Trunc(n) {
			return uint64(n), true
		}
	}
	return 0, false
}
