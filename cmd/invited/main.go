// Command invited runs the invite ledger HTTP server.
//
// Configuration comes from the environment. With Google Sheets credentials
// present the ledger runs against a spreadsheet; otherwise it falls back to
// the in-memory store, which is only useful for local development.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/conversion"
	"github.com/davemagnier/youmio-invite/httpapi"
	"github.com/davemagnier/youmio-invite/privy"
	"github.com/davemagnier/youmio-invite/session"
	"github.com/davemagnier/youmio-invite/store"
	"github.com/davemagnier/youmio-invite/store/memory"
	"github.com/davemagnier/youmio-invite/store/sheets"
)

type config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	SpreadsheetID   string `env:"SHEETS_SPREADSHEET_ID"`
	CredentialsJSON string `env:"SHEETS_CREDENTIALS_JSON"`

	SignatureMode string `env:"SIGNATURE_MODE" envDefault:"enforced"`
	WalletAuth    bool   `env:"WALLET_AUTH" envDefault:"true"`

	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`

	PrivyAppID     string `env:"PRIVY_APP_ID"`
	PrivyAppSecret string `env:"PRIVY_APP_SECRET"`

	SyncBatchSize  int           `env:"SYNC_BATCH_SIZE" envDefault:"15"`
	SyncInterval   time.Duration `env:"SYNC_INTERVAL" envDefault:"15m"`
	SyncBatchDelay time.Duration `env:"SYNC_BATCH_DELAY" envDefault:"500ms"`
	SyncKey        string        `env:"SYNC_KEY"`

	AdminPassword string `env:"ADMIN_PASSWORD"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sigMode, err := conversion.ParseSignatureMode(cfg.SignatureMode)
	if err != nil {
		return err
	}
	if sigMode == conversion.SignatureEnforced && cfg.WebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required when SIGNATURE_MODE=enforced")
	}

	opts := []invite.Option{
		invite.WithLogger(logger),
		invite.WithWebhookSecret(cfg.WebhookSecret, sigMode),
		invite.WithSyncConfig(cfg.SyncBatchSize, cfg.SyncInterval, cfg.SyncBatchDelay),
	}

	if cfg.WalletAuth {
		opts = append(opts, invite.WithSessions(session.NewAuthenticator(session.WithNonceRequired(true))))
	} else {
		logger.Warn("wallet signature verification disabled")
	}

	if cfg.PrivyAppID != "" && cfg.PrivyAppSecret != "" {
		opts = append(opts, invite.WithPusher(privy.NewClient(cfg.PrivyAppID, cfg.PrivyAppSecret)))
	} else {
		logger.Warn("allowlist sync disabled: no Privy credentials")
	}

	engine := invite.New(st, opts...)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	srv := httpapi.NewServer(engine,
		httpapi.WithLogger(logger),
		httpapi.WithAdminPassword(cfg.AdminPassword),
		httpapi.WithSyncKey(cfg.SyncKey),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(cfg.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return engine.Stop()
	}
}

func newStore(ctx context.Context, cfg config, logger *slog.Logger) (store.Store, error) {
	if cfg.SpreadsheetID != "" && cfg.CredentialsJSON != "" {
		st, err := sheets.New(ctx, cfg.SpreadsheetID, []byte(cfg.CredentialsJSON), sheets.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("sheets store: %w", err)
		}
		logger.Info("using sheets store", "spreadsheet", cfg.SpreadsheetID)
		return st, nil
	}
	logger.Warn("no sheets credentials, using in-memory store")
	return memory.New(), nil
}
