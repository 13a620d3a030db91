package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/credentials"
	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/JonMunkholm/crmsync/internal/ledger"
	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageLine)
		os.Exit(2)
	}

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fail(fmt.Errorf("config validation: %w", err))
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags); err != nil {
		stop()
		fail(err)
	}
}

func run(ctx context.Context, cfg *config.Config, flags cliFlags) error {
	policy, err := core.ParseKeyPolicy(cfg.Sync.SaveKeyPolicy)
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	creds, err := credentials.NewPrompter(os.Stdin, os.Stderr).Resolve(cfg.CRM.Email, cfg.CRM.Password)
	if err != nil {
		return fmt.Errorf("invalid options: credentials: %w", err)
	}

	client, err := crm.New(crm.Config{
		BaseURL:            cfg.CRM.BaseURL,
		OrganizationKey:    cfg.CRM.OrganizationKey,
		InsecureSkipVerify: cfg.CRM.InsecureSkipVerify,
		Timeout:            cfg.CRM.RequestTimeout,
		UserAgent:          cfg.CRM.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	store, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN, cfg.Ledger.MaxConns)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close ledger", "error", err)
		}
	}()

	runner := core.NewRunner(client, store, os.Stdout)
	res, err := runner.Run(ctx, core.Options{
		Mode:         flags.mode(),
		ObjectType:   flags.object,
		InputPath:    flags.file,
		Key:          flags.key,
		Credentials:  creds,
		StrictSchema: cfg.Sync.StrictSchema,
		KeyPolicy:    policy,
		SampleSize:   cfg.Sync.SniffSampleSize,
		HTMLReport:   cfg.Sync.HTMLReport,
	})
	if err != nil {
		return err
	}

	if res.Failed > 0 {
		slog.Warn("some rows were rejected", "failed", res.Failed, "rows", res.Rows, "output", res.OutputPath)
	}
	return nil
}

// fail prints a one-line diagnostic, logs the technical error and exits 1.
func fail(err error) {
	uerr := core.NewUserError(err)
	fmt.Fprintln(os.Stderr, uerr.Display())
	if core.IsUserFacing(err) {
		slog.Error("crmsync failed", "code", uerr.User.Code, "error", uerr.Technical)
	} else {
		slog.Error("unexpected error", "error", uerr.Technical)
	}
	os.Exit(1)
}
