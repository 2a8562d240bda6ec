package ledger

import (
	"fmt"
	"os"
	"strings"

	"github.com/stellar/go/network"
	"gopkg.in/yaml.v3"
)

const (
	NetworkTest = "test"
	NetworkLive = "live"
)

// NetworkDefinitions models the optional networks.yaml file.
type NetworkDefinitions struct {
	Networks map[string]NetworkDefinition `yaml:"networks"`
}

// NetworkDefinition describes how to reach one Stellar network.
type NetworkDefinition struct {
	HorizonURL  string `yaml:"horizon_url"`
	Passphrase  string `yaml:"passphrase"`
	Description string `yaml:"description"`
}

// DefaultNetworks returns the public Horizon endpoints.
func DefaultNetworks() NetworkDefinitions {
	return NetworkDefinitions{Networks: map[string]NetworkDefinition{
		NetworkTest: {
			HorizonURL:  "https://horizon-testnet.stellar.org/",
			Passphrase:  network.TestNetworkPassphrase,
			Description: "Stellar testnet",
		},
		NetworkLive: {
			HorizonURL:  "https://horizon.stellar.org/",
			Passphrase:  network.PublicNetworkPassphrase,
			Description: "Stellar public network",
		},
	}}
}

// LoadNetworkDefinitions parses path and overlays it on the defaults. An
// empty path yields the defaults.
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	defs := DefaultNetworks()
	if strings.TrimSpace(path) == "" {
		return defs, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinitions{}, fmt.Errorf("read network definitions: %w", err)
	}

	var parsed NetworkDefinitions
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("parse network definitions: %w", err)
	}
	for name, def := range parsed.Networks {
		name = strings.ToLower(strings.TrimSpace(name))
		base := defs.Networks[name]
		if def.HorizonURL != "" {
			base.HorizonURL = def.HorizonURL
		}
		if def.Passphrase != "" {
			base.Passphrase = def.Passphrase
		}
		if def.Description != "" {
			base.Description = def.Description
		}
		if base.HorizonURL == "" || base.Passphrase == "" {
			return NetworkDefinitions{}, fmt.Errorf("network %s needs horizon_url and passphrase", name)
		}
		defs.Networks[name] = base
	}
	return defs, nil
}
