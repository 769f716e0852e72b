// Package interop converts between this codec's values and the types of the
// github.com/rabbitmq/amqp091-go client, so messages captured or decoded here
// can be handed to code written against that client and back.
//
// amqp091 accepts a few native types this codec has no tag for. They map to
// the nearest variant: int8 and int16 become LongInt, uint8 becomes ShortInt,
// uint32 becomes LongInt or LongLongInt depending on its value, float64
// becomes Float and []byte becomes LongString.
package interop

import (
	"fmt"
	"math"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/protocol"
)

// FromAMQP091Table converts an amqp091 table. Nested tables and arrays are
// converted recursively.
func FromAMQP091Table(t amqp091.Table) (protocol.Table, error) {
	if t == nil {
		return nil, nil
	}
	table := make(protocol.Table, len(t))
	for k, v := range t {
		if len(k) > math.MaxUint8 {
			return nil, amqperrors.NewUnsupportedValue("table key of %d bytes exceeds 255", len(k))
		}
		value, err := fromAMQP091Value(v)
		if err != nil {
			return nil, amqperrors.NewUnsupportedValue("table key %q: %v", k, err)
		}
		table[k] = value
	}
	return table, nil
}

func fromAMQP091Value(v interface{}) (protocol.Value, error) {
	switch val := v.(type) {
	case nil:
		return protocol.Null{}, nil
	case bool:
		return protocol.Bool(val), nil
	case int8:
		return protocol.LongInt(val), nil
	case uint8:
		return protocol.ShortInt(val), nil
	case int16:
		return protocol.LongInt(val), nil
	case uint16:
		return protocol.ShortInt(val), nil
	case int32:
		return protocol.LongInt(val), nil
	case int:
		return protocol.NewValue(val)
	case uint32:
		return protocol.NewValue(val)
	case int64:
		return protocol.LongLongInt(val), nil
	case float32:
		return protocol.Float(val), nil
	case float64:
		return protocol.Float(val), nil
	case amqp091.Decimal:
		return protocol.Decimal{Scale: val.Scale, Value: val.Value}, nil
	case string:
		return protocol.LongString(val), nil
	case []byte:
		return protocol.LongString(val), nil
	case time.Time:
		return protocol.NewTimestamp(val), nil
	case amqp091.Table:
		return FromAMQP091Table(val)
	case []interface{}:
		array := make(protocol.Array, len(val))
		for i, item := range val {
			value, err := fromAMQP091Value(item)
			if err != nil {
				return nil, fmt.Errorf("array index %d: %w", i, err)
			}
			array[i] = value
		}
		return array, nil
	default:
		return nil, amqperrors.NewUnsupportedValue("no field type for %T", v)
	}
}

// ToAMQP091Table converts a table to the value types amqp091 validates.
func ToAMQP091Table(t protocol.Table) amqp091.Table {
	if t == nil {
		return nil
	}
	table := make(amqp091.Table, len(t))
	for k, v := range t {
		table[k] = toAMQP091Value(v)
	}
	return table
}

func toAMQP091Value(v protocol.Value) interface{} {
	switch val := v.(type) {
	case protocol.Bool:
		return bool(val)
	case protocol.ShortInt:
		// amqp091 has no unsigned short in its validated set
		return int32(val)
	case protocol.LongInt:
		return int32(val)
	case protocol.LongLongInt:
		return int64(val)
	case protocol.Float:
		return float32(val)
	case protocol.Decimal:
		return amqp091.Decimal{Scale: val.Scale, Value: val.Value}
	case protocol.Timestamp:
		return val.Time()
	case protocol.ShortString:
		return string(val)
	case protocol.LongString:
		return string(val)
	case protocol.Table:
		return ToAMQP091Table(val)
	case protocol.Array:
		array := make([]interface{}, len(val))
		for i, item := range val {
			array[i] = toAMQP091Value(item)
		}
		return array
	default:
		return nil
	}
}

// PropertiesFromPublishing returns the Basic properties of p. Zero fields are
// left absent.
func PropertiesFromPublishing(p amqp091.Publishing) (*protocol.Properties, error) {
	props := protocol.NewBasicProperties()

	headers, err := FromAMQP091Table(p.Headers)
	if err != nil {
		return nil, err
	}

	set := func(name string, v interface{}, present bool) {
		if err != nil || !present {
			return
		}
		err = props.Set(name, v)
	}
	set("content_type", p.ContentType, p.ContentType != "")
	set("content_encoding", p.ContentEncoding, p.ContentEncoding != "")
	set("headers", headers, headers != nil)
	set("delivery_mode", p.DeliveryMode, p.DeliveryMode != 0)
	set("priority", p.Priority, p.Priority != 0)
	set("correlation_id", p.CorrelationId, p.CorrelationId != "")
	set("reply_to", p.ReplyTo, p.ReplyTo != "")
	set("expiration", p.Expiration, p.Expiration != "")
	set("message_id", p.MessageId, p.MessageId != "")
	set("timestamp", p.Timestamp, !p.Timestamp.IsZero())
	set("type", p.Type, p.Type != "")
	set("user_id", p.UserId, p.UserId != "")
	set("app_id", p.AppId, p.AppId != "")
	if err != nil {
		return nil, err
	}
	return props, nil
}

// PublishingFromProperties builds an amqp091 publishing from Basic
// properties and a body. cluster_id has no Publishing field and is dropped.
func PublishingFromProperties(props *protocol.Properties, body []byte) amqp091.Publishing {
	p := amqp091.Publishing{Body: body}
	if props == nil {
		return p
	}
	p.Headers = ToAMQP091Table(props.Headers())
	p.ContentType = props.ContentType()
	p.ContentEncoding = props.ContentEncoding()
	p.DeliveryMode = props.DeliveryMode()
	p.Priority = props.Priority()
	p.CorrelationId = props.CorrelationID()
	p.ReplyTo = props.ReplyTo()
	p.Expiration = props.Expiration()
	p.MessageId = props.MessageID()
	p.Timestamp = props.Timestamp()
	p.Type = props.Type()
	p.UserId = props.UserID()
	p.AppId = props.AppID()
	return p
}

// MessageFromDelivery rebuilds the Basic.Deliver message an amqp091 consumer
// received, as it appeared on the wire.
func MessageFromDelivery(channel uint16, d amqp091.Delivery) (*protocol.Message, error) {
	method, err := protocol.BuildMethod("Basic.Deliver", map[string]interface{}{
		"consumer_tag": d.ConsumerTag,
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
		"exchange":     d.Exchange,
		"routing_key":  d.RoutingKey,
	})
	if err != nil {
		return nil, err
	}

	props, err := PropertiesFromPublishing(amqp091.Publishing{
		Headers:         d.Headers,
		ContentType:     d.ContentType,
		ContentEncoding: d.ContentEncoding,
		DeliveryMode:    d.DeliveryMode,
		Priority:        d.Priority,
		CorrelationId:   d.CorrelationId,
		ReplyTo:         d.ReplyTo,
		Expiration:      d.Expiration,
		MessageId:       d.MessageId,
		Timestamp:       d.Timestamp,
		Type:            d.Type,
		UserId:          d.UserId,
		AppId:           d.AppId,
	})
	if err != nil {
		return nil, err
	}

	return &protocol.Message{
		Channel: channel,
		Method:  method,
		Header:  protocol.NewContentHeader(protocol.ClassBasic, uint64(len(d.Body)), props),
		Body:    d.Body,
	}, nil
}
