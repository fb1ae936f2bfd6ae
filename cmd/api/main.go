package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/reflink/payoutledger/internal/api"
	"github.com/reflink/payoutledger/internal/config"
	"github.com/reflink/payoutledger/internal/domain"
	"github.com/reflink/payoutledger/internal/ledger"
	"github.com/reflink/payoutledger/internal/logging"
	"github.com/reflink/payoutledger/internal/server"
	"github.com/reflink/payoutledger/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	journal, err := openJournal(ctx, cfg)
	if err != nil {
		logger.Fatal("unable to open journal", zap.Error(err))
	}
	defer journal.Close()

	svc, err := ledger.New(ctx, ledger.Options{
		Journal:     journal,
		Logger:      logger,
		LockWait:    cfg.LockWait,
		LockRetries: cfg.LockRetries,
		BulkWorkers: cfg.BulkWorkers,
	})
	if err != nil {
		logger.Fatal("unable to build ledger", zap.Error(err))
	}

	for _, p := range defaultMethodProfiles() {
		if err := svc.RegisterMethod(p); err != nil {
			logger.Fatal("unable to register payout method", zap.Error(err))
		}
	}

	handler := api.NewHandler(svc, logger)
	srv := server.New(logger, ":"+cfg.Port, api.NewRouter(handler))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case sig := <-stop:
		logger.Info("signal received", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}
}

func openJournal(ctx context.Context, cfg *config.Config) (store.Journal, error) {
	if cfg.StoreDriver == config.DriverPostgres {
		pg, err := store.NewPostgres(ctx, cfg.DBSource)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}
	return store.NewMemory(), nil
}

// defaultMethodProfiles mirrors the rails the platform currently offers.
// Bank transfer ships unconfigured until banking details are wired up.
func defaultMethodProfiles() []domain.MethodProfile {
	usd := func(units int64) domain.Money { return domain.Money{Units: units, Currency: "USD"} }
	return []domain.MethodProfile{
		{
			Method:             domain.MethodPayPal,
			Configured:         true,
			FeeBps:             300,
			MinAmount:          usd(1000),
			MaxAmount:          usd(1000000),
			SupportedCountries: []string{"US", "CA", "GB", "AU", "DE", "FR", "ES", "IT", "NL"},
			ProcessingTime:     "1-2 business days",
		},
		{
			Method:             domain.MethodStripe,
			Configured:         true,
			FeeBps:             290,
			MinAmount:          usd(500),
			MaxAmount:          usd(2000000),
			SupportedCountries: []string{"US", "CA", "GB", "AU", "DE", "FR", "JP", "SG"},
			ProcessingTime:     "2-3 business days",
		},
		{
			Method:             domain.MethodWise,
			Configured:         true,
			FeeBps:             150,
			MinAmount:          usd(100),
			MaxAmount:          usd(500000),
			SupportedCountries: []string{"US", "CA", "GB", "AU", "DE", "FR", "IN", "BR", "MX", "PL"},
			ProcessingTime:     "1-3 business days",
		},
		{
			Method:             domain.MethodBankTransfer,
			Configured:         false,
			FeeBps:             0,
			MinAmount:          usd(5000),
			MaxAmount:          usd(5000000),
			SupportedCountries: []string{"US"},
			ProcessingTime:     "3-5 business days",
		},
	}
}
