package protocol

import (
	"time"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// Properties per flag word. Bit 0 of each word is the continuation flag.
const propertiesPerWord = 15

// Properties holds the optional content properties of one content header.
// A property is either present with a value or absent; absent is distinct
// from an empty value. Bit properties have no value on the wire and are
// carried by their flag alone.
type Properties struct {
	Def    *PropertiesDef
	values []interface{} // nil means absent
}

// NewProperties returns an empty property set for def.
func NewProperties(def *PropertiesDef) *Properties {
	return &Properties{Def: def, values: make([]interface{}, len(def.Fields))}
}

// NewBasicProperties returns an empty Basic property set.
func NewBasicProperties() *Properties {
	return NewProperties(BasicProperties)
}

// Set makes a property present with the given value. Setting a bit property
// to false clears it.
func (p *Properties) Set(name string, v interface{}) error {
	i := p.Def.FieldIndex(name)
	if i < 0 {
		return amqperrors.NewUnsupportedValue("%s has no property %q", p.Def.Name, name)
	}
	value, err := coerce(p.Def.Fields[i], v)
	if err != nil {
		return err
	}
	if b, ok := value.(bool); ok && !b {
		value = nil
	}
	p.values[i] = value
	return nil
}

// Get returns the value of a present property.
func (p *Properties) Get(name string) (interface{}, bool) {
	i := p.Def.FieldIndex(name)
	if i < 0 || p.values[i] == nil {
		return nil, false
	}
	return p.values[i], true
}

// Has reports whether the property is present.
func (p *Properties) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Clear makes a property absent.
func (p *Properties) Clear(name string) {
	if i := p.Def.FieldIndex(name); i >= 0 {
		p.values[i] = nil
	}
}

// Len returns the number of present properties.
func (p *Properties) Len() int {
	n := 0
	for _, v := range p.values {
		if v != nil {
			n++
		}
	}
	return n
}

// Map returns the present properties keyed by name.
func (p *Properties) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.values))
	for i, v := range p.values {
		if v != nil {
			out[p.Def.Fields[i].Name] = v
		}
	}
	return out
}

// Clone returns a copy sharing no value slice with p.
func (p *Properties) Clone() *Properties {
	c := &Properties{Def: p.Def, values: make([]interface{}, len(p.values))}
	copy(c.values, p.values)
	return c
}

// Flags returns the flag words announcing which properties are present.
// There is always at least one word; every word but the last has its
// continuation bit set.
func (p *Properties) Flags() []uint16 {
	words := make([]uint16, 1)
	for i, v := range p.values {
		if v == nil {
			continue
		}
		word := i / propertiesPerWord
		for len(words) <= word {
			words = append(words, 0)
		}
		words[word] |= 1 << (15 - i%propertiesPerWord)
	}
	for i := 0; i < len(words)-1; i++ {
		words[i] |= 1
	}
	return words
}

// AppendTo appends the flag words and the present properties in schema order.
func (p *Properties) AppendTo(dst []byte) ([]byte, error) {
	start := len(dst)
	for _, word := range p.Flags() {
		dst = AppendShort(dst, word)
	}

	var err error
	for i, def := range p.Def.Fields {
		v := p.values[i]
		if v == nil || def.Type == FieldBit {
			continue
		}
		if dst, err = appendField(dst, def, v); err != nil {
			return dst[:start], err
		}
	}
	return dst, nil
}

// DecodeProperties decodes flag words followed by the present properties.
func DecodeProperties(def *PropertiesDef, data []byte) (int, *Properties, error) {
	var words []uint16
	offset := 0
	for {
		n, word, err := DecodeShort(data[offset:])
		if err != nil {
			return 0, nil, err
		}
		offset += n
		words = append(words, word)
		if word&1 == 0 {
			break
		}
	}

	for i := len(def.Fields); i < len(words)*propertiesPerWord; i++ {
		if flagSet(words, i) {
			return 0, nil, amqperrors.NewFrameError("property flag set beyond the "+propertiesName(def)+" schema", FrameHeader)
		}
	}

	p := NewProperties(def)
	for i, field := range def.Fields {
		if !flagSet(words, i) {
			continue
		}
		if field.Type == FieldBit {
			p.values[i] = true
			continue
		}
		n, v, err := decodeField(field, data[offset:])
		if err != nil {
			return 0, nil, err
		}
		p.values[i] = v
		offset += n
	}

	return offset, p, nil
}

// flagSet reports whether property i is flagged present. Property i lives in
// word i/15 at bit 15-(i%15).
func flagSet(words []uint16, i int) bool {
	word := i / propertiesPerWord
	return word < len(words) && words[word]&(1<<(15-i%propertiesPerWord)) != 0
}

func propertiesName(def *PropertiesDef) string {
	if def.Name != "" {
		return def.Name
	}
	return "class properties"
}

func (p *Properties) text(name string) string {
	v, _ := p.Get(name)
	s, _ := v.(string)
	return s
}

func (p *Properties) octet(name string) uint8 {
	v, _ := p.Get(name)
	n, _ := v.(uint8)
	return n
}

// Basic property accessors. Absent properties return the zero value; use
// Has to tell absent from empty.

func (p *Properties) ContentType() string     { return p.text("content_type") }
func (p *Properties) ContentEncoding() string { return p.text("content_encoding") }
func (p *Properties) DeliveryMode() uint8     { return p.octet("delivery_mode") }
func (p *Properties) Priority() uint8         { return p.octet("priority") }
func (p *Properties) CorrelationID() string   { return p.text("correlation_id") }
func (p *Properties) ReplyTo() string         { return p.text("reply_to") }
func (p *Properties) Expiration() string      { return p.text("expiration") }
func (p *Properties) MessageID() string       { return p.text("message_id") }
func (p *Properties) Type() string            { return p.text("type") }
func (p *Properties) UserID() string          { return p.text("user_id") }
func (p *Properties) AppID() string           { return p.text("app_id") }
func (p *Properties) ClusterID() string       { return p.text("cluster_id") }

func (p *Properties) Headers() Table {
	v, _ := p.Get("headers")
	t, _ := v.(Table)
	return t
}

func (p *Properties) Timestamp() time.Time {
	v, _ := p.Get("timestamp")
	t, _ := v.(time.Time)
	return t
}
