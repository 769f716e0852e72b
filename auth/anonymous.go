package auth

// AnonymousMechanism implements SASL ANONYMOUS. The response carries no
// credentials and is ignored.
type AnonymousMechanism struct{}

// Name returns the mechanism name
func (a *AnonymousMechanism) Name() string {
	return "ANONYMOUS"
}

func (a *AnonymousMechanism) Parse(response string) (Credentials, error) {
	return Credentials{Mechanism: a.Name()}, nil
}

func (a *AnonymousMechanism) Response(Credentials) (string, error) {
	return "", nil
}
