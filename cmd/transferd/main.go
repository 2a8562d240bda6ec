package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"transfer-ever/internal/api"
	"transfer-ever/internal/command"
	"transfer-ever/internal/config"
	"transfer-ever/internal/funding"
	"transfer-ever/internal/ledger/provider"
	"transfer-ever/internal/wallet"
	"transfer-ever/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to transferd.json (defaults to $TRANSFERD_CONFIG or configs/transferd.json)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("transferd: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Named("transferd")

	registry, err := provider.NewRegistry(provider.Options{
		DefinitionsPath: cfg.Ledger.NetworksFile,
		Network:         cfg.Ledger.Network,
		HTTPTimeout:     cfg.Ledger.HTTPTimeout(),
		RateLimit:       cfg.Ledger.RateLimit,
	})
	if err != nil {
		return err
	}
	gateway, err := registry.Default()
	if err != nil {
		return err
	}

	runs, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	defer runs.Close()

	transport, err := openBus(ctx, cfg.Bus)
	if err != nil {
		return err
	}
	defer transport.Close()

	minimum, err := cfg.Ledger.Minimum()
	if err != nil {
		return err
	}
	home := funding.DefaultHomeAsset()
	if cfg.Ledger.HomeAssetCode != "" {
		home.Code = cfg.Ledger.HomeAssetCode
	}
	if cfg.Ledger.HomeAssetIssuer != "" {
		home.Issuer = cfg.Ledger.HomeAssetIssuer
	}

	wallets := wallet.NewFileLoader(cfg.Wallet.Path)
	saga, err := funding.New(gateway, wallets,
		funding.WithHomeAsset(home),
		funding.WithMinimumAmount(minimum),
		funding.WithStartingBalance(cfg.Ledger.StartingBalance),
		funding.WithTxTimeout(cfg.Ledger.TxTimeout()),
		funding.WithNetwork(registry.DefaultNetwork()),
		funding.WithRecorder(runs),
		funding.WithLogger(logger.Named("funding")),
	)
	if err != nil {
		return err
	}

	processor := command.NewProcessor(saga, transport, transport,
		command.WithWorkerCount(cfg.Bus.Workers),
		command.WithReplyTopic(cfg.Bus.ReplyTopic),
		command.WithAlertDispatcher(newAlerter(cfg.Alerting, transport, cfg.Bus.AlertTopic)),
		command.WithProcessorLogger(logger.Named("command")),
	)

	log.Info("transferd starting",
		"network", registry.DefaultNetwork(),
		"bus", cfg.Bus.Driver,
		"journal", cfg.Journal.Driver,
		"wallet", wallets.Path(),
		"home_asset", home.Code,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Start(gctx)
	})
	if cfg.Server.IsEnabled() {
		server := api.NewServer(cfg.Server.Address, runs)
		g.Go(func() error {
			return server.Start(gctx)
		})
	}
	if console, ok := transport.(*consoleBus); ok {
		g.Go(func() error {
			return console.run(gctx, os.Stdin, os.Stdout)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("transferd stopped")
	return nil
}
