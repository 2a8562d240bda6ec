package provider

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stellar/go/network"
)

func TestSelectNetwork(t *testing.T) {
	cases := map[string]string{
		"test":       "test",
		" TEST ":     "test",
		"":           "live",
		"live":       "live",
		"public":     "live",
		"standalone": "standalone",
	}
	for in, want := range cases {
		if got := SelectNetwork(in); got != want {
			t.Fatalf("SelectNetwork(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRegistryDefaults(t *testing.T) {
	reg, err := NewRegistry(Options{Network: "test"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if !reflect.DeepEqual(reg.Networks(), []string{"live", "test"}) {
		t.Fatalf("unexpected networks %v", reg.Networks())
	}
	gw, err := reg.Default()
	if err != nil {
		t.Fatalf("default gateway: %v", err)
	}
	if gw.Name() != "test" || gw.Passphrase() != network.TestNetworkPassphrase {
		t.Fatalf("unexpected default gateway %s", gw.Name())
	}

	live, err := NewRegistry(Options{})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if live.DefaultNetwork() != "live" {
		t.Fatalf("expected live as default, got %s", live.DefaultNetwork())
	}
}

func TestNewRegistryCustomNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := "networks:\n  standalone:\n    horizon_url: http://localhost:8000/\n    passphrase: \"Standalone Network ; February 2017\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg, err := NewRegistry(Options{DefinitionsPath: path, Network: "standalone"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, ok := reg.Gateway("standalone"); !ok {
		t.Fatalf("standalone gateway missing")
	}

	if _, err := NewRegistry(Options{DefinitionsPath: path, Network: "futurenet"}); err == nil {
		t.Fatalf("expected error for unknown default network")
	}
}
