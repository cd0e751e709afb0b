package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/config"
	"github.com/ahinestrog/mypos/internal/customer"
	"github.com/ahinestrog/mypos/internal/events"
	"github.com/ahinestrog/mypos/internal/httpx"
	"github.com/ahinestrog/mypos/internal/inventory"
	"github.com/ahinestrog/mypos/internal/receipts"
	"github.com/ahinestrog/mypos/internal/server"
	"github.com/ahinestrog/mypos/internal/transaction"
)

func newDoer(cfg config.Config, name, baseURL string) *httpx.Doer {
	return httpx.New(baseURL, httpx.Options{
		Name:        name,
		Timeout:     cfg.HTTPTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	})
}

func newCatalog(cfg config.Config) (*inventory.Catalog, func()) {
	src := inventory.NewClient(newDoer(cfg, "inventory", cfg.InventoryURL))
	if cfg.RedisAddr == "" {
		return inventory.NewCatalog(src), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	cache := inventory.NewRedisCache(rdb, cfg.SnapshotTTL)
	return inventory.NewCatalog(src, inventory.WithCache(cache)), func() { _ = rdb.Close() }
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogger(cfg)
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("inventory", cfg.InventoryURL).
		Str("customers", cfg.CustomerURL).
		Str("transactions", cfg.TransactionURL).
		Str("receipts_db", cfg.ReceiptsDBPath).
		Msg("starting cashier service")

	// Catalog
	catalog, closeCache := newCatalog(cfg)
	defer closeCache()
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := catalog.Load(loadCtx); err != nil {
		log.Warn().Err(err).Msg("inventory not loaded yet, cart adds will fail until a refresh succeeds")
	} else {
		log.Info().Int("items", catalog.Snapshot().Len()).Msg("inventory loaded")
	}
	cancelLoad()

	// Receipts
	sqlStore, err := receipts.NewSQLiteStore(cfg.ReceiptsDBPath)
	must(err)
	defer sqlStore.Close()
	store, err := receipts.NewCachedStore(sqlStore, cfg.ReceiptsCacheSize)
	must(err)

	// Post-commit hooks
	syncers := []checkout.InventorySyncer{catalog}
	if cfg.RabbitURL != "" {
		rabbit, err := events.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Warn().Err(err).Msg("rabbit unavailable, events disabled")
		} else {
			defer rabbit.Close()
			syncers = append(syncers, events.NewNotifier(rabbit))
			log.Info().Str("exchange", cfg.RabbitExchange).Msg("rabbit publisher ready")
		}
	}

	sub := checkout.NewSubmitter(
		transaction.NewClient(newDoer(cfg, "transactions", cfg.TransactionURL)),
		checkout.WithJournal(store),
		checkout.WithSyncers(syncers...),
	)

	api := server.New(server.Deps{
		Catalog:   catalog,
		Customers: customer.NewClient(newDoer(cfg, "customers", cfg.CustomerURL)),
		Submitter: sub,
		Receipts:  store,
		Timeout:   3 * cfg.HTTPTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Routes(cfg.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 4 * cfg.HTTPTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Warn().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
