// Package auth reads and writes the SASL responses carried by
// Connection.StartOk and Connection.SecureOk, and redacts them so decoded
// traffic can be printed or logged without leaking passwords.
package auth

import (
	"fmt"
	"slices"
	"strings"

	"github.com/maxpert/amqp-wire/protocol"
)

// Credentials are the fields of a SASL response.
type Credentials struct {
	Mechanism string
	// Identity is the optional authorization identity (PLAIN only).
	Identity string
	Username string
	Password string
}

func (c Credentials) String() string {
	if c.Username == "" {
		return c.Mechanism
	}
	return fmt.Sprintf("%s user=%s password=***", c.Mechanism, c.Username)
}

// Mechanism represents a SASL authentication mechanism
type Mechanism interface {
	// Name returns the mechanism name (e.g., "PLAIN", "ANONYMOUS")
	Name() string

	// Parse extracts the credentials from a response field.
	Parse(response string) (Credentials, error)

	// Response builds the response field for c.
	Response(c Credentials) (string, error)
}

// Registry manages available authentication mechanisms
type Registry struct {
	mechanisms map[string]Mechanism
}

// NewRegistry creates a new mechanism registry
func NewRegistry() *Registry {
	return &Registry{
		mechanisms: make(map[string]Mechanism),
	}
}

// Register adds a mechanism to the registry
func (r *Registry) Register(mechanism Mechanism) {
	r.mechanisms[mechanism.Name()] = mechanism
}

// Get retrieves a mechanism by name
func (r *Registry) Get(name string) (Mechanism, error) {
	mechanism, exists := r.mechanisms[name]
	if !exists {
		return nil, fmt.Errorf("unsupported authentication mechanism: %s", name)
	}
	return mechanism, nil
}

// List returns all registered mechanism names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.mechanisms))
	for name := range r.mechanisms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// String returns the space-separated list a server sends in the mechanisms
// field of Connection.Start.
func (r *Registry) String() string {
	return strings.Join(r.List(), " ")
}

// DefaultRegistry returns a registry with PLAIN, AMQPLAIN and ANONYMOUS
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(&PlainMechanism{})
	registry.Register(&AMQPlainMechanism{})
	registry.Register(&AnonymousMechanism{})
	return registry
}

var defaultRegistry = DefaultRegistry()

// Redact returns m with its SASL response replaced by a description that
// omits the password. Methods other than Connection.StartOk and
// Connection.SecureOk are returned unchanged. A response that cannot be
// parsed is replaced entirely.
func (r *Registry) Redact(m *protocol.Method) *protocol.Method {
	if m == nil {
		return nil
	}

	var field, mechanism string
	switch m.Name() {
	case "Connection.StartOk":
		field, mechanism = "response", m.Text("mechanism")
	case "Connection.SecureOk":
		field = "response"
	default:
		return m
	}

	redacted := "<redacted>"
	if mech, err := r.Get(mechanism); err == nil {
		if creds, err := mech.Parse(m.Text(field)); err == nil {
			redacted = "<" + creds.String() + ">"
		}
	}

	// The redacted field goes in first so no error path can leak the response.
	clone := protocol.NewMethod(m.Def)
	if err := clone.Set(field, redacted); err != nil {
		return clone
	}
	for name, v := range m.Arguments() {
		if name == field {
			continue
		}
		if err := clone.Set(name, v); err != nil {
			return clone
		}
	}
	return clone
}

// RedactFrame applies Redact with the default registry to method frames.
func RedactFrame(frame protocol.FrameValue) protocol.FrameValue {
	if mf, ok := frame.(protocol.MethodFrame); ok {
		return protocol.MethodFrame{Method: defaultRegistry.Redact(mf.Method)}
	}
	return frame
}
