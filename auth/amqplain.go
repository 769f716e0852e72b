package auth

import (
	"encoding/binary"
	"fmt"

	"github.com/maxpert/amqp-wire/protocol"
)

// AMQPlainMechanism implements the RabbitMQ AMQPLAIN mechanism. Its response
// is the body of a field table holding LOGIN and PASSWORD, sent without the
// table's length prefix.
type AMQPlainMechanism struct{}

// Name returns the mechanism name
func (a *AMQPlainMechanism) Name() string {
	return "AMQPLAIN"
}

// Parse decodes an AMQPLAIN response.
func (a *AMQPlainMechanism) Parse(response string) (Credentials, error) {
	data := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(response)), uint32(len(response)))
	data = append(data, response...)

	_, table, err := protocol.DecodeFieldTable(data)
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid AMQPLAIN response: %w", err)
	}

	login, ok := text(table["LOGIN"])
	if !ok || login == "" {
		return Credentials{}, fmt.Errorf("AMQPLAIN response has no LOGIN")
	}
	password, _ := text(table["PASSWORD"])
	return Credentials{Mechanism: a.Name(), Username: login, Password: password}, nil
}

// Response encodes c as an AMQPLAIN response.
func (a *AMQPlainMechanism) Response(c Credentials) (string, error) {
	if c.Username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	data, err := protocol.EncodeFieldTable(protocol.Table{
		"LOGIN":    protocol.LongString(c.Username),
		"PASSWORD": protocol.LongString(c.Password),
	})
	if err != nil {
		return "", err
	}
	return string(data[4:]), nil
}

func text(v protocol.Value) (string, bool) {
	switch s := v.(type) {
	case protocol.LongString:
		return string(s), true
	case protocol.ShortString:
		return string(s), true
	}
	return "", false
}
