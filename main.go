package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/franco-bianco/solanacopy-go/config"
	"github.com/franco-bianco/solanacopy-go/jupiter"
	solanacopygo "github.com/franco-bianco/solanacopy-go/solanacopy-go"
	"github.com/franco-bianco/solanacopy-go/spltoken/balance"
	"github.com/franco-bianco/solanacopy-go/spltoken/price"
	"github.com/franco-bianco/solanacopy-go/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.DebugLogging {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := rpc.New(cfg.RPCURL)

	var store solanacopygo.EventStore
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("connecting to postgres: %v", err)
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn("no postgres_url configured, events are kept in memory only")
		store = storage.NewMemoryStore()
	}

	var ownWallet solana.PublicKey
	var executor solanacopygo.SwapExecutor
	mode := solanacopygo.ModeMonitor
	if cfg.CopyMode {
		ownWallet, err = solana.PublicKeyFromBase58(cfg.OwnWallet)
		if err != nil {
			log.Fatalf("invalid own_wallet: %v", err)
		}
		executor = jupiter.New(cfg.JupiterURL, ownWallet, log)
		mode = solanacopygo.ModeCopy
	}

	tracker := solanacopygo.NewTracker(solanacopygo.TrackerConfig{
		RPC:       client,
		Store:     store,
		Executor:  executor,
		Prices:    price.NewResolver(client, log),
		Inventory: balance.New(client, log),
		OwnWallet: ownWallet,
		Caps: solanacopygo.Caps{
			MaxTradePercent: cfg.MaxTradePct,
			MinTradeSOL:     cfg.MinTradeSOL,
			MaxTradeSOL:     cfg.MaxTradeSOL,
		},
		PollInterval:    cfg.PollDuration(),
		SignatureWindow: cfg.SigWindow,
		RPCRate:         cfg.RPCRate,
		Log:             log,
	})

	for _, w := range cfg.TrackWallets {
		wallet, err := solana.PublicKeyFromBase58(w)
		if err != nil {
			log.Fatalf("invalid tracked wallet %s: %v", w, err)
		}
		if err := tracker.Start(ctx, wallet, mode); err != nil {
			log.Fatalf("starting tracker for %s: %v", wallet, err)
		}
	}

	<-ctx.Done()
	log.Info("shutting down")
	tracker.StopAll()
}
