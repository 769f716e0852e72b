package protocol

import (
	"encoding/binary"
	"fmt"

	amqperrors "github.com/maxpert/amqp-wire/errors"
)

// ContentHeader is the payload of a header frame. It announces the total body
// size of the message that follows and carries its properties.
type ContentHeader struct {
	ClassID uint16
	// Weight is reserved and should be zero. Non-zero values are preserved.
	Weight     uint16
	BodySize   uint64
	Properties *Properties
}

// NewContentHeader returns a header for a body of bodySize bytes. A nil props
// means no properties.
func NewContentHeader(classID uint16, bodySize uint64, props *Properties) *ContentHeader {
	if props == nil {
		props = NewProperties(propertiesOrEmpty(classID))
	}
	return &ContentHeader{ClassID: classID, BodySize: bodySize, Properties: props}
}

func propertiesOrEmpty(classID uint16) *PropertiesDef {
	if def := PropertiesFor(classID); def != nil {
		return def
	}
	return &PropertiesDef{ClassID: classID}
}

// DecodeContentHeader decodes a header frame payload.
func DecodeContentHeader(data []byte) (int, *ContentHeader, error) {
	if err := need("content header", data, contentHeaderFixedSize); err != nil {
		return 0, nil, err
	}
	h := &ContentHeader{
		ClassID:  binary.BigEndian.Uint16(data[0:2]),
		Weight:   binary.BigEndian.Uint16(data[2:4]),
		BodySize: binary.BigEndian.Uint64(data[4:12]),
	}

	n, props, err := DecodeProperties(propertiesOrEmpty(h.ClassID), data[contentHeaderFixedSize:])
	if err != nil {
		return 0, nil, err
	}
	h.Properties = props
	return contentHeaderFixedSize + n, h, nil
}

// Encode returns the header frame payload.
func (h *ContentHeader) Encode() ([]byte, error) {
	return h.AppendTo(make([]byte, 0, 64))
}

// AppendTo appends the header frame payload to dst.
func (h *ContentHeader) AppendTo(dst []byte) ([]byte, error) {
	props := h.Properties
	if props == nil {
		props = NewProperties(propertiesOrEmpty(h.ClassID))
	}
	if props.Def.ClassID != h.ClassID && len(props.Def.Fields) > 0 {
		return dst, amqperrors.NewUnsupportedValue("properties of class %d on a class %d header", props.Def.ClassID, h.ClassID)
	}

	start := len(dst)
	dst = AppendShort(dst, h.ClassID)
	dst = AppendShort(dst, h.Weight)
	dst = AppendLongLong(dst, int64(h.BodySize))
	dst, err := props.AppendTo(dst)
	if err != nil {
		return dst[:start], err
	}
	return dst, nil
}

func (h *ContentHeader) String() string {
	props := map[string]interface{}{}
	if h.Properties != nil {
		props = h.Properties.Map()
	}
	return fmt.Sprintf("ContentHeader(class=%d, weight=%d, body_size=%d, properties=%v)",
		h.ClassID, h.Weight, h.BodySize, props)
}
