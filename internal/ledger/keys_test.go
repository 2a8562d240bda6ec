package ledger

import (
	"errors"
	"testing"

	"github.com/stellar/go/keypair"
)

func TestParseSecret(t *testing.T) {
	full := keypair.MustRandom()

	kp, err := ParseSecret("  " + full.Seed() + "\n")
	if err != nil {
		t.Fatalf("parse secret: %v", err)
	}
	if kp.Address != full.Address() || kp.Seed != full.Seed() {
		t.Fatalf("unexpected key pair %s", kp)
	}
	if kp.String() != full.Address() {
		t.Fatalf("String must not expose the seed")
	}
}

func TestParseSecretRejectsGarbage(t *testing.T) {
	for _, seed := range []string{"", "SK...", keypair.MustRandom().Address()} {
		if _, err := ParseSecret(seed); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("seed %q: expected ErrInvalidKey, got %v", seed, err)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	if err := ValidateAddress(keypair.MustRandom().Address()); err != nil {
		t.Fatalf("valid address rejected: %v", err)
	}
	if err := ValidateAddress("GBAD"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestAssetHelpers(t *testing.T) {
	if !NativeAsset().IsNative() || NativeAsset().String() != "XLM" {
		t.Fatalf("native asset helpers broken")
	}
	ever := CreditAsset("EVER", "GISSUER")
	if ever.Type != "credit_alphanum4" || ever.IsNative() {
		t.Fatalf("unexpected asset %+v", ever)
	}
	if CreditAsset("EVERLIFE", "GISSUER").Type != "credit_alphanum12" {
		t.Fatalf("long codes must be alphanum12")
	}
}
