package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/keypair"
)

// ErrInvalidKey is returned for seeds or addresses that do not decode.
var ErrInvalidKey = errors.New("invalid stellar key")

// KeyPair is a signing identity. Seed must never be logged.
type KeyPair struct {
	Address string
	Seed    string
}

// ParseSecret derives the key pair for a secret seed (S...).
func ParseSecret(seed string) (KeyPair, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return KeyPair{}, fmt.Errorf("%w: empty seed", ErrInvalidKey)
	}
	full, err := keypair.ParseFull(seed)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return KeyPair{Address: full.Address(), Seed: full.Seed()}, nil
}

// ValidateAddress checks that address is a public account key (G...).
func ValidateAddress(address string) error {
	if _, err := keypair.ParseAddress(strings.TrimSpace(address)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}

func (k KeyPair) String() string {
	return k.Address
}
