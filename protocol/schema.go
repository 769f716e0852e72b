package protocol

import (
	"fmt"
	"sort"
)

// FieldType is the declared wire type of a method argument or content
// property.
type FieldType uint8

const (
	FieldBit FieldType = iota + 1
	FieldOctet
	FieldShort
	FieldLong
	FieldLongLong
	FieldShortString
	FieldLongString
	FieldTable
	FieldTimestamp
)

var fieldTypeNames = map[FieldType]string{
	FieldBit:         "bit",
	FieldOctet:       "octet",
	FieldShort:       "short",
	FieldLong:        "long",
	FieldLongLong:    "longlong",
	FieldShortString: "shortstr",
	FieldLongString:  "longstr",
	FieldTable:       "table",
	FieldTimestamp:   "timestamp",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// FieldDef names one positional field of a method or property list.
type FieldDef struct {
	Name string
	Type FieldType
}

// MethodDef describes one AMQP method: its identity and ordered arguments.
type MethodDef struct {
	ClassID  uint16
	MethodID uint16
	Name     string
	Fields   []FieldDef

	// Synchronous methods expect a reply method from the peer.
	Synchronous bool
	// HasContent methods are followed by a content header and body frames.
	HasContent bool
}

// Index returns the 32-bit class/method identifier that prefixes a method
// frame payload.
func (d *MethodDef) Index() uint32 {
	return MethodIndex(d.ClassID, d.MethodID)
}

// FieldIndex returns the position of the named field, or -1.
func (d *MethodDef) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (d *MethodDef) String() string {
	return d.Name
}

// MethodIndex packs a class and method id the way they appear on the wire.
func MethodIndex(classID, methodID uint16) uint32 {
	return uint32(classID)<<16 | uint32(methodID)
}

// PropertiesDef describes the content properties of a class.
type PropertiesDef struct {
	ClassID uint16
	Name    string
	Fields  []FieldDef
}

// FieldIndex returns the position of the named property, or -1.
func (d *PropertiesDef) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func bit(name string) FieldDef       { return FieldDef{name, FieldBit} }
func octet(name string) FieldDef     { return FieldDef{name, FieldOctet} }
func short(name string) FieldDef     { return FieldDef{name, FieldShort} }
func long(name string) FieldDef      { return FieldDef{name, FieldLong} }
func longlong(name string) FieldDef  { return FieldDef{name, FieldLongLong} }
func shortstr(name string) FieldDef  { return FieldDef{name, FieldShortString} }
func longstr(name string) FieldDef   { return FieldDef{name, FieldLongString} }
func table(name string) FieldDef     { return FieldDef{name, FieldTable} }
func timestamp(name string) FieldDef { return FieldDef{name, FieldTimestamp} }

func fields(defs ...FieldDef) []FieldDef { return defs }

var closeFields = fields(short("reply_code"), shortstr("reply_text"), short("class_id"), short("method_id"))

// methodCatalog is the AMQP 0-9-1 method set as implemented by RabbitMQ.
var methodCatalog = []MethodDef{
	// Connection
	{ClassID: ClassConnection, MethodID: 10, Name: "Connection.Start", Synchronous: true, Fields: fields(
		octet("version_major"), octet("version_minor"), table("server_properties"),
		longstr("mechanisms"), longstr("locales"))},
	{ClassID: ClassConnection, MethodID: 11, Name: "Connection.StartOk", Fields: fields(
		table("client_properties"), shortstr("mechanism"), longstr("response"), shortstr("locale"))},
	{ClassID: ClassConnection, MethodID: 20, Name: "Connection.Secure", Synchronous: true, Fields: fields(
		longstr("challenge"))},
	{ClassID: ClassConnection, MethodID: 21, Name: "Connection.SecureOk", Fields: fields(
		longstr("response"))},
	{ClassID: ClassConnection, MethodID: 30, Name: "Connection.Tune", Synchronous: true, Fields: fields(
		short("channel_max"), long("frame_max"), short("heartbeat"))},
	{ClassID: ClassConnection, MethodID: 31, Name: "Connection.TuneOk", Fields: fields(
		short("channel_max"), long("frame_max"), short("heartbeat"))},
	{ClassID: ClassConnection, MethodID: 40, Name: "Connection.Open", Synchronous: true, Fields: fields(
		shortstr("virtual_host"), shortstr("capabilities"), bit("insist"))},
	{ClassID: ClassConnection, MethodID: 41, Name: "Connection.OpenOk", Fields: fields(
		shortstr("known_hosts"))},
	{ClassID: ClassConnection, MethodID: 50, Name: "Connection.Close", Synchronous: true, Fields: closeFields},
	{ClassID: ClassConnection, MethodID: 51, Name: "Connection.CloseOk"},
	{ClassID: ClassConnection, MethodID: 60, Name: "Connection.Blocked", Fields: fields(
		shortstr("reason"))},
	{ClassID: ClassConnection, MethodID: 61, Name: "Connection.Unblocked"},
	{ClassID: ClassConnection, MethodID: 70, Name: "Connection.UpdateSecret", Synchronous: true, Fields: fields(
		longstr("new_secret"), shortstr("reason"))},
	{ClassID: ClassConnection, MethodID: 71, Name: "Connection.UpdateSecretOk"},

	// Channel
	{ClassID: ClassChannel, MethodID: 10, Name: "Channel.Open", Synchronous: true, Fields: fields(
		shortstr("out_of_band"))},
	{ClassID: ClassChannel, MethodID: 11, Name: "Channel.OpenOk", Fields: fields(
		longstr("channel_id"))},
	{ClassID: ClassChannel, MethodID: 20, Name: "Channel.Flow", Synchronous: true, Fields: fields(
		bit("active"))},
	{ClassID: ClassChannel, MethodID: 21, Name: "Channel.FlowOk", Fields: fields(
		bit("active"))},
	{ClassID: ClassChannel, MethodID: 40, Name: "Channel.Close", Synchronous: true, Fields: closeFields},
	{ClassID: ClassChannel, MethodID: 41, Name: "Channel.CloseOk"},

	// Access
	{ClassID: ClassAccess, MethodID: 10, Name: "Access.Request", Synchronous: true, Fields: fields(
		shortstr("realm"), bit("exclusive"), bit("passive"), bit("active"), bit("write"), bit("read"))},
	{ClassID: ClassAccess, MethodID: 11, Name: "Access.RequestOk", Fields: fields(
		short("ticket"))},

	// Exchange
	{ClassID: ClassExchange, MethodID: 10, Name: "Exchange.Declare", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("exchange"), shortstr("type"), bit("passive"), bit("durable"),
		bit("auto_delete"), bit("internal"), bit("nowait"), table("arguments"))},
	{ClassID: ClassExchange, MethodID: 11, Name: "Exchange.DeclareOk"},
	{ClassID: ClassExchange, MethodID: 20, Name: "Exchange.Delete", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("exchange"), bit("if_unused"), bit("nowait"))},
	{ClassID: ClassExchange, MethodID: 21, Name: "Exchange.DeleteOk"},
	{ClassID: ClassExchange, MethodID: 30, Name: "Exchange.Bind", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("destination"), shortstr("source"), shortstr("routing_key"),
		bit("nowait"), table("arguments"))},
	{ClassID: ClassExchange, MethodID: 31, Name: "Exchange.BindOk"},
	{ClassID: ClassExchange, MethodID: 40, Name: "Exchange.Unbind", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("destination"), shortstr("source"), shortstr("routing_key"),
		bit("nowait"), table("arguments"))},
	{ClassID: ClassExchange, MethodID: 51, Name: "Exchange.UnbindOk"},

	// Queue
	{ClassID: ClassQueue, MethodID: 10, Name: "Queue.Declare", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), bit("passive"), bit("durable"), bit("exclusive"),
		bit("auto_delete"), bit("nowait"), table("arguments"))},
	{ClassID: ClassQueue, MethodID: 11, Name: "Queue.DeclareOk", Fields: fields(
		shortstr("queue"), long("message_count"), long("consumer_count"))},
	{ClassID: ClassQueue, MethodID: 20, Name: "Queue.Bind", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), shortstr("exchange"), shortstr("routing_key"),
		bit("nowait"), table("arguments"))},
	{ClassID: ClassQueue, MethodID: 21, Name: "Queue.BindOk"},
	{ClassID: ClassQueue, MethodID: 30, Name: "Queue.Purge", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), bit("nowait"))},
	{ClassID: ClassQueue, MethodID: 31, Name: "Queue.PurgeOk", Fields: fields(
		long("message_count"))},
	{ClassID: ClassQueue, MethodID: 40, Name: "Queue.Delete", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), bit("if_unused"), bit("if_empty"), bit("nowait"))},
	{ClassID: ClassQueue, MethodID: 41, Name: "Queue.DeleteOk", Fields: fields(
		long("message_count"))},
	{ClassID: ClassQueue, MethodID: 50, Name: "Queue.Unbind", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), shortstr("exchange"), shortstr("routing_key"),
		table("arguments"))},
	{ClassID: ClassQueue, MethodID: 51, Name: "Queue.UnbindOk"},

	// Basic
	{ClassID: ClassBasic, MethodID: 10, Name: "Basic.Qos", Synchronous: true, Fields: fields(
		long("prefetch_size"), short("prefetch_count"), bit("global"))},
	{ClassID: ClassBasic, MethodID: 11, Name: "Basic.QosOk"},
	{ClassID: ClassBasic, MethodID: 20, Name: "Basic.Consume", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), shortstr("consumer_tag"), bit("no_local"), bit("no_ack"),
		bit("exclusive"), bit("nowait"), table("arguments"))},
	{ClassID: ClassBasic, MethodID: 21, Name: "Basic.ConsumeOk", Fields: fields(
		shortstr("consumer_tag"))},
	{ClassID: ClassBasic, MethodID: 30, Name: "Basic.Cancel", Synchronous: true, Fields: fields(
		shortstr("consumer_tag"), bit("nowait"))},
	{ClassID: ClassBasic, MethodID: 31, Name: "Basic.CancelOk", Fields: fields(
		shortstr("consumer_tag"))},
	{ClassID: ClassBasic, MethodID: 40, Name: "Basic.Publish", HasContent: true, Fields: fields(
		short("ticket"), shortstr("exchange"), shortstr("routing_key"), bit("mandatory"), bit("immediate"))},
	{ClassID: ClassBasic, MethodID: 50, Name: "Basic.Return", HasContent: true, Fields: fields(
		short("reply_code"), shortstr("reply_text"), shortstr("exchange"), shortstr("routing_key"))},
	{ClassID: ClassBasic, MethodID: 60, Name: "Basic.Deliver", HasContent: true, Fields: fields(
		shortstr("consumer_tag"), longlong("delivery_tag"), bit("redelivered"), shortstr("exchange"),
		shortstr("routing_key"))},
	{ClassID: ClassBasic, MethodID: 70, Name: "Basic.Get", Synchronous: true, Fields: fields(
		short("ticket"), shortstr("queue"), bit("no_ack"))},
	{ClassID: ClassBasic, MethodID: 71, Name: "Basic.GetOk", HasContent: true, Fields: fields(
		longlong("delivery_tag"), bit("redelivered"), shortstr("exchange"), shortstr("routing_key"),
		long("message_count"))},
	{ClassID: ClassBasic, MethodID: 72, Name: "Basic.GetEmpty", Fields: fields(
		shortstr("cluster_id"))},
	{ClassID: ClassBasic, MethodID: 80, Name: "Basic.Ack", Fields: fields(
		longlong("delivery_tag"), bit("multiple"))},
	{ClassID: ClassBasic, MethodID: 90, Name: "Basic.Reject", Fields: fields(
		longlong("delivery_tag"), bit("requeue"))},
	{ClassID: ClassBasic, MethodID: 100, Name: "Basic.RecoverAsync", Fields: fields(
		bit("requeue"))},
	{ClassID: ClassBasic, MethodID: 110, Name: "Basic.Recover", Synchronous: true, Fields: fields(
		bit("requeue"))},
	{ClassID: ClassBasic, MethodID: 111, Name: "Basic.RecoverOk"},
	{ClassID: ClassBasic, MethodID: 120, Name: "Basic.Nack", Fields: fields(
		longlong("delivery_tag"), bit("multiple"), bit("requeue"))},

	// Confirm
	{ClassID: ClassConfirm, MethodID: 10, Name: "Confirm.Select", Synchronous: true, Fields: fields(
		bit("nowait"))},
	{ClassID: ClassConfirm, MethodID: 11, Name: "Confirm.SelectOk"},

	// Tx
	{ClassID: ClassTx, MethodID: 10, Name: "Tx.Select", Synchronous: true},
	{ClassID: ClassTx, MethodID: 11, Name: "Tx.SelectOk"},
	{ClassID: ClassTx, MethodID: 20, Name: "Tx.Commit", Synchronous: true},
	{ClassID: ClassTx, MethodID: 21, Name: "Tx.CommitOk"},
	{ClassID: ClassTx, MethodID: 30, Name: "Tx.Rollback", Synchronous: true},
	{ClassID: ClassTx, MethodID: 31, Name: "Tx.RollbackOk"},
}

// BasicProperties is the property list carried by Basic content headers.
var BasicProperties = &PropertiesDef{
	ClassID: ClassBasic,
	Name:    "Basic.Properties",
	Fields: fields(
		shortstr("content_type"),
		shortstr("content_encoding"),
		table("headers"),
		octet("delivery_mode"),
		octet("priority"),
		shortstr("correlation_id"),
		shortstr("reply_to"),
		shortstr("expiration"),
		shortstr("message_id"),
		timestamp("timestamp"),
		shortstr("type"),
		shortstr("user_id"),
		shortstr("app_id"),
		shortstr("cluster_id"),
	),
}

var (
	methodsByIndex = make(map[uint32]*MethodDef, len(methodCatalog))
	methodsByName  = make(map[string]*MethodDef, len(methodCatalog))
	sortedMethods  = make([]*MethodDef, 0, len(methodCatalog))
	propertiesDefs = map[uint16]*PropertiesDef{ClassBasic: BasicProperties}
)

func init() {
	for i := range methodCatalog {
		def := &methodCatalog[i]
		if _, dup := methodsByIndex[def.Index()]; dup {
			panic(fmt.Sprintf("protocol: duplicate method index %d.%d", def.ClassID, def.MethodID))
		}
		methodsByIndex[def.Index()] = def
		methodsByName[def.Name] = def
		sortedMethods = append(sortedMethods, def)
	}
	sort.Slice(sortedMethods, func(i, j int) bool {
		return sortedMethods[i].Index() < sortedMethods[j].Index()
	})

	for _, classID := range []uint16{ClassConnection, ClassChannel, ClassAccess, ClassExchange, ClassQueue, ClassConfirm, ClassTx} {
		propertiesDefs[classID] = &PropertiesDef{ClassID: classID}
	}
}

// LookupMethod returns the method with the given class and method id.
func LookupMethod(classID, methodID uint16) (*MethodDef, bool) {
	return LookupMethodIndex(MethodIndex(classID, methodID))
}

// LookupMethodIndex returns the method identified by a packed index.
func LookupMethodIndex(index uint32) (*MethodDef, bool) {
	def, ok := methodsByIndex[index]
	return def, ok
}

// MethodByName returns the method with a name such as "Basic.Cancel".
func MethodByName(name string) (*MethodDef, bool) {
	def, ok := methodsByName[name]
	return def, ok
}

// Methods returns every known method ordered by index. The slice is shared
// and must not be modified.
func Methods() []*MethodDef {
	return sortedMethods
}

// PropertiesFor returns the property list for a class. Classes that carry
// no content have an empty list; an unknown class yields nil.
func PropertiesFor(classID uint16) *PropertiesDef {
	return propertiesDefs[classID]
}
