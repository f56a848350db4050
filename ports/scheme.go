package ports

// Scheme validates public keys and verifies detached signatures for one
// signature algorithm. Implementations never panic on adversarial input.
type Scheme interface {
	// Name identifies the scheme in config and logs
	Name() string
	// ValidateKey reports whether key decodes to an on-curve public key
	ValidateKey(key string) bool
	// Verify reports whether signature is valid for message under key
	Verify(message, signature, key string) bool
}
