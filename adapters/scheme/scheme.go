// Package scheme implements the key validators and detached signature
// verifiers walletlink accepts.
package scheme

import (
	"fmt"

	"github.com/layer-3/walletlink/ports"
)

const (
	NameEd25519   = "ed25519"
	NameSecp256k1 = "secp256k1"
)

// New returns the scheme registered under name
func New(name string) (ports.Scheme, error) {
	switch name {
	case "", NameEd25519:
		return Ed25519{}, nil
	case NameSecp256k1:
		return Secp256k1{}, nil
	default:
		return nil, fmt.Errorf("unknown signature scheme %q", name)
	}
}
