package app

import (
	"log/slog"
	"time"

	"github.com/Galien-Dev/celo-sumbit/internal/bank"
	"github.com/Galien-Dev/celo-sumbit/internal/domain"
	"github.com/Galien-Dev/celo-sumbit/internal/event"
	"github.com/Galien-Dev/celo-sumbit/internal/infra"
	"github.com/Galien-Dev/celo-sumbit/internal/infra/storage"
	"github.com/Galien-Dev/celo-sumbit/internal/market"
	"github.com/Galien-Dev/celo-sumbit/internal/realtime"
	"github.com/Galien-Dev/celo-sumbit/internal/service"
	"github.com/Galien-Dev/celo-sumbit/internal/token"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.Store
	Assets  *token.Registry
	Ledger  *bank.Ledger
	Bus     *event.Bus
	Market  *market.Market
	Service *service.MarketService
	Server  *realtime.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, engine).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping auction market...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Custody collaborators and event bus
	b.Assets = token.NewRegistry()
	b.Ledger = bank.NewLedger(domain.Account(cfg.Market.EscrowAccount))
	b.Bus = event.NewBus()

	// 5. Market engine with write-through persistence
	b.Market = market.New(market.Config{
		Escrow:       domain.Account(cfg.Market.EscrowAccount),
		Assets:       b.Assets,
		Bank:         b.Ledger,
		Sink:         b.Bus,
		Store:        store,
		Metrics:      infra.GlobalMetrics,
		IncrementPct: cfg.Market.IncrementPct,
	})

	// 6. Restore engine state from the last run
	state, err := store.LoadState()
	if err != nil {
		return err
	}
	b.Market.Restore(state)
	slog.Info("✅ Engine state restored",
		slog.Int("listings", len(state.Listings)),
		slog.Int("listings_with_bids", len(state.Bids)))

	// 7. Read-side facade and HTTP/WS surface
	b.Service = service.NewMarketService(b.Market, store, nil)
	b.Server = realtime.NewServer(b.Market, b.Service, b.Ledger, b.Bus, infra.GlobalMetrics, logger)
	b.Server.MinDuration = time.Duration(cfg.Market.MinDurationSec) * time.Second

	return nil
}
