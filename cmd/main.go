package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"

	amqpadapter "tokendrop/internal/adapter/amqp"
	"tokendrop/internal/adapter/evm"
	httpadapter "tokendrop/internal/adapter/http"
	"tokendrop/internal/adapter/postgres"
	"tokendrop/internal/adapter/solana"
	"tokendrop/internal/adapter/usecase"
	"tokendrop/internal/adapter/vault"
	"tokendrop/internal/config"
	"tokendrop/internal/core/port"
	"tokendrop/internal/db"
)

// main is the entry point of the tokendrop service. It loads
// configuration, optionally runs database migrations, initializes the
// database pool, wallet vault and chain adapters, then starts the
// campaign engine and HTTP server. On receiving a termination signal it
// stops every scheduler loop and gracefully shuts down the server.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	// A missing .env file is fine; the environment itself wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var logger *slog.Logger
	{
		var handler slog.Handler
		level := cfg.Log.SlogLevel()
		switch cfg.Log.SlogFormat() {
		case "json":
			handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		default:
			handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		}
		logger = slog.New(handler)
	}

	if cfg.Psql.RunMigrations {
		if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
			logger.Error("migration error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied successfully")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.Psql)
	if err != nil {
		logger.Error("database connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	wallets := vault.New(postgres.NewWalletStore(pool), cfg.Vault.Passphrase)

	var adapters []port.ChainAdapter
	if cfg.EVM.Enabled {
		client, err := ethclient.DialContext(ctx, cfg.EVM.RPCAddr)
		if err != nil {
			logger.Error("evm rpc connection error", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		adapter, err := evm.New(client, wallets, cfg.EVM.ChainID, float64(cfg.EVM.GasPriceMultiplier)/100)
		if err != nil {
			logger.Error("evm adapter error", slog.Any("error", err))
			os.Exit(1)
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Solana.Enabled {
		adapters = append(adapters, solana.New(rpc.New(cfg.Solana.RPCAddr), wallets, rpc.CommitmentType(cfg.Solana.Commitment)))
	}

	var notifier port.ProgressNotifier
	if cfg.AMQP.Addr != "" {
		n, err := amqpadapter.Dial(cfg.AMQP.Addr, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Error("amqp connection error", slog.Any("error", err))
			os.Exit(1)
		}
		defer n.Close()
		notifier = n
	}

	engine := usecase.NewEngine(
		usecase.Config{
			BatchSize:            cfg.Engine.BatchSize,
			InterBatchDelay:      cfg.Engine.InterBatchDelay,
			ConfirmTimeout:       cfg.Engine.ConfirmTimeout,
			ConfirmPollInterval:  cfg.Engine.ConfirmPollInterval,
			AuditInterval:        cfg.Engine.AuditInterval,
			CompleteWithFailures: cfg.Engine.CompleteWithFailures,
		},
		postgres.NewCampaignRepository(pool),
		postgres.NewRecipientLedger(pool),
		postgres.NewTransactionLog(pool),
		wallets,
		adapters,
		notifier,
		nil,
		logger,
	)

	// Campaigns interrupted mid-send resume over their pending set.
	if err = engine.Recover(ctx); err != nil {
		logger.Error("recovery error", slog.Any("error", err))
		os.Exit(1)
	}

	handler := httpadapter.NewHandler(engine, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	value := <-quit
	exitCode = 128 + int(value.(syscall.Signal))

	engine.StopAll()
	logger.Info("scheduler loops stopped")

	ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}
}
