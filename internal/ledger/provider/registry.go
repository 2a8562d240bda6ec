package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"transfer-ever/internal/ledger"
	"transfer-ever/internal/ledger/horizon"
)

// Registry manages the Horizon gateways keyed by network name.
type Registry struct {
	defaultNetwork string
	gateways       map[string]*horizon.Gateway
}

// Options controls how the registry is built.
type Options struct {
	// DefinitionsPath points at an optional networks.yaml file.
	DefinitionsPath string
	// Network selects the default gateway. "test" picks the test network,
	// anything else the live one.
	Network     string
	HTTPTimeout time.Duration
	RateLimit   int
}

// NewRegistry loads network definitions and instantiates one gateway per network.
func NewRegistry(opts Options) (*Registry, error) {
	defs, err := ledger.LoadNetworkDefinitions(opts.DefinitionsPath)
	if err != nil {
		return nil, err
	}

	gateways := make(map[string]*horizon.Gateway, len(defs.Networks))
	for name, def := range defs.Networks {
		gw, err := horizon.NewGateway(horizon.Config{
			Name:        name,
			HorizonURL:  def.HorizonURL,
			Passphrase:  def.Passphrase,
			HTTPTimeout: opts.HTTPTimeout,
			RateLimit:   opts.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("init network %s: %w", name, err)
		}
		gateways[name] = gw
	}
	if len(gateways) == 0 {
		return nil, errors.New("no stellar networks configured")
	}

	selected := SelectNetwork(opts.Network)
	if _, ok := gateways[selected]; !ok {
		return nil, fmt.Errorf("default network %s is not configured", selected)
	}
	return &Registry{defaultNetwork: selected, gateways: gateways}, nil
}

// SelectNetwork maps the ELIFE_STELLAR_HORIZON style selector to a network
// name. Only "test" selects the test network; an explicit custom network
// name that is neither test nor live is kept as is.
func SelectNetwork(selector string) string {
	s := strings.ToLower(strings.TrimSpace(selector))
	switch s {
	case ledger.NetworkTest:
		return ledger.NetworkTest
	case "", ledger.NetworkLive, "public", "main", "mainnet":
		return ledger.NetworkLive
	default:
		return s
	}
}

// Default returns the gateway selected at construction.
func (r *Registry) Default() (*horizon.Gateway, error) {
	if r == nil {
		return nil, errors.New("ledger registry not initialised")
	}
	gw, ok := r.gateways[r.defaultNetwork]
	if !ok {
		return nil, fmt.Errorf("default network %s not registered", r.defaultNetwork)
	}
	return gw, nil
}

// DefaultNetwork returns the name of the default network.
func (r *Registry) DefaultNetwork() string {
	if r == nil {
		return ""
	}
	return r.defaultNetwork
}

// Gateway returns the gateway registered under name.
func (r *Registry) Gateway(name string) (*horizon.Gateway, bool) {
	if r == nil {
		return nil, false
	}
	gw, ok := r.gateways[name]
	return gw, ok
}

// Networks returns the registered network names.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
