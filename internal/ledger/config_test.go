package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stellar/go/network"
)

func TestLoadNetworkDefinitionsDefaults(t *testing.T) {
	defs, err := LoadNetworkDefinitions("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if defs.Networks[NetworkTest].Passphrase != network.TestNetworkPassphrase {
		t.Fatalf("unexpected test passphrase %q", defs.Networks[NetworkTest].Passphrase)
	}
	if defs.Networks[NetworkLive].HorizonURL != "https://horizon.stellar.org/" {
		t.Fatalf("unexpected live url %q", defs.Networks[NetworkLive].HorizonURL)
	}
}

func TestLoadNetworkDefinitionsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := `networks:
  test:
    horizon_url: http://localhost:8000/
  standalone:
    horizon_url: http://localhost:8001/
    passphrase: "Standalone Network ; February 2017"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	defs, err := LoadNetworkDefinitions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	test := defs.Networks[NetworkTest]
	if test.HorizonURL != "http://localhost:8000/" || test.Passphrase != network.TestNetworkPassphrase {
		t.Fatalf("overlay lost defaults: %+v", test)
	}
	if defs.Networks["standalone"].Passphrase != "Standalone Network ; February 2017" {
		t.Fatalf("custom network missing: %+v", defs.Networks)
	}
}

func TestLoadNetworkDefinitionsRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	if err := os.WriteFile(path, []byte("networks:\n  custom:\n    horizon_url: http://x/\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadNetworkDefinitions(path); err == nil {
		t.Fatalf("expected error for network without passphrase")
	}
}
