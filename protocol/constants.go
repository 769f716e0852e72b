package protocol

// Frame types defined by AMQP 0-9-1
const (
	FrameMethod    = 1
	FrameHeader    = 2
	FrameBody      = 3
	FrameHeartbeat = 8
	FrameEnd       = 0xCE // Frame end marker byte

	// FrameProtocolHeader never appears in a frame header. It stands for the
	// protocol header that opens a connection.
	FrameProtocolHeader = 0
)

// Envelope sizes
const (
	FrameHeaderSize = 7 // type(1) + channel(2) + size(4)
	FrameEndSize    = 1
	FrameOverhead   = FrameHeaderSize + FrameEndSize

	ProtocolHeaderSize = 8

	// FrameMinSize is the smallest frame-max a peer may negotiate.
	FrameMinSize = 4096

	// DefaultFrameMax matches the RabbitMQ default frame-max.
	DefaultFrameMax = 131072

	contentHeaderFixedSize = 12 // class(2) + weight(2) + body-size(8)
)

// Protocol version implemented by this package (0-9-1).
const (
	VersionMajor    = 0
	VersionMinor    = 9
	VersionRevision = 1
)

// Class IDs
const (
	ClassConnection = 10
	ClassChannel    = 20
	ClassAccess     = 30
	ClassExchange   = 40
	ClassQueue      = 50
	ClassBasic      = 60
	ClassConfirm    = 85
	ClassTx         = 90
)

// Delivery modes for the Basic delivery-mode property
const (
	Transient  uint8 = 1
	Persistent uint8 = 2
)

var protocolHeaderPrefix = [...]byte{'A', 'M', 'Q', 'P'}

// FrameTypeName returns a human readable name for a frame type byte.
func FrameTypeName(frameType byte) string {
	switch frameType {
	case FrameProtocolHeader:
		return "protocol_header"
	case FrameMethod:
		return "method"
	case FrameHeader:
		return "header"
	case FrameBody:
		return "body"
	case FrameHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}
