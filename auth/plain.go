package auth

import (
	"fmt"
	"strings"
)

// PlainMechanism implements SASL PLAIN authentication
type PlainMechanism struct{}

// Name returns the mechanism name
func (p *PlainMechanism) Name() string {
	return "PLAIN"
}

// Parse splits a PLAIN response.
// The response is a sequence of three strings separated by NUL (0x00) bytes:
// [authorization-identity] NUL [authentication-identity] NUL [password]
func (p *PlainMechanism) Parse(response string) (Credentials, error) {
	if response == "" {
		return Credentials{}, fmt.Errorf("empty authentication response")
	}

	parts := strings.Split(response, "\x00")
	if len(parts) != 3 {
		return Credentials{}, fmt.Errorf("invalid PLAIN response format: expected 3 parts, got %d", len(parts))
	}
	if parts[1] == "" {
		return Credentials{}, fmt.Errorf("username cannot be empty")
	}

	return Credentials{
		Mechanism: p.Name(),
		Identity:  parts[0],
		Username:  parts[1],
		Password:  parts[2],
	}, nil
}

// Response joins c into a PLAIN response.
func (p *PlainMechanism) Response(c Credentials) (string, error) {
	if c.Username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	if strings.ContainsRune(c.Identity+c.Username+c.Password, 0) {
		return "", fmt.Errorf("PLAIN credentials cannot contain NUL")
	}
	return c.Identity + "\x00" + c.Username + "\x00" + c.Password, nil
}
