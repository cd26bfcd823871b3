package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lotwatch/lotwatch/internal/archive"
	"github.com/lotwatch/lotwatch/internal/changelog"
	"github.com/lotwatch/lotwatch/internal/metrics"
	"github.com/lotwatch/lotwatch/internal/source"
	"github.com/lotwatch/lotwatch/internal/store"
	"github.com/lotwatch/lotwatch/internal/sweep"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	ConfigFile string
	Config     Config

	// Source allows overriding the inventory source (for testing).
	// If nil, an HTTP source is built from the config.
	Source source.Source

	// Now allows overriding sweep timestamps (for testing).
	Now func() time.Time
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts, Config: DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one full inventory sweep",
		Long: `Run one full pagination pass over the dealership inventory API.

Every returned vehicle is reconciled into the SQLite database (current
state plus price/mileage/inventory-date history), raw responses are
archived, field-level changes are logged, and vehicles missing from the
sweep are re-checked by VIN before being marked removed.

A SOCKS5 proxy is picked up from the SOCKS5 environment variable
(host:port).

Example:
  lotwatch sweep --db ./inventory.db
  lotwatch sweep --db ./inventory.db --archive-dir ./archive --deadline 30m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	flags.StringVar(&opts.Config.Database, "db", "", "path to SQLite database (required)")
	flags.StringVar(&opts.Config.ArchiveDir, "archive-dir", opts.Config.ArchiveDir, "directory for raw response archives")
	flags.StringVar(&opts.Config.Changelog, "changelog", opts.Config.Changelog, "path to the change log file")
	flags.StringVar(&opts.Config.BaseURL, "base-url", opts.Config.BaseURL, "inventory API endpoint")
	flags.StringVar(&opts.Config.GeoZip, "zip", opts.Config.GeoZip, "search zip code")
	flags.IntVar(&opts.Config.GeoRadius, "radius", opts.Config.GeoRadius, "search radius in miles (0 = nationwide)")
	flags.DurationVar(&opts.Config.Timeout, "timeout", opts.Config.Timeout, "per-request timeout")
	flags.DurationVar(&opts.Config.Deadline, "deadline", opts.Config.Deadline, "overall sweep deadline (0 = unbounded)")
	flags.IntVar(&opts.Config.FetchAttempts, "fetch-attempts", opts.Config.FetchAttempts, "attempts per page fetch before aborting")
	flags.StringVar(&opts.Config.MetricsAddr, "metrics", opts.Config.MetricsAddr, "serve Prometheus /metrics on this address (empty = off)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	log := slog.New(handler)

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	metrics.Register()
	metrics.Serve(cfg.MetricsAddr)

	log.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	src := opts.Source
	if src == nil {
		httpSrc, err := source.New(source.Config{
			BaseURL:   cfg.BaseURL,
			GeoZip:    cfg.GeoZip,
			GeoRadius: cfg.GeoRadius,
			PageSize:  cfg.PageSize,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			SOCKS5:    cfg.SOCKS5,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build inventory source", err)
		}
		src = httpSrc
	}

	recorder := changelog.NewFileRecorder(cfg.Changelog, cmd.OutOrStdout())
	reconciler := sweep.NewReconciler(st, recorder, opts.Now)

	controller := sweep.NewController(sweep.ControllerConfig{
		Source:        src,
		Store:         st,
		Archive:       archive.NewWriter(cfg.ArchiveDir),
		Reconciler:    reconciler,
		Logger:        log,
		PageSize:      cfg.PageSize,
		FetchAttempts: cfg.FetchAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		Now:           opts.Now,
	})

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if cfg.Deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, aborting sweep", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("sweep starting", "db", cfg.Database, "base_url", cfg.BaseURL)
	result, err := controller.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "sweep aborted", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"sweep %s complete: pages=%d observed=%d inserted=%d updated=%d removed=%d reactivated=%d skipped=%d ambiguous=%d changes=%d\n",
		result.SweepID, result.Pages, result.Observed, result.Inserted, result.Updated,
		result.Removed, result.Reactivated, result.Skipped, result.Ambiguous, result.Changes)
	return nil
}

// resolveConfig layers the config file, environment, and explicitly set
// flags. Flag values win over everything else.
func resolveConfig(opts *SweepOptions, cmd *cobra.Command) (Config, error) {
	flagCfg := opts.Config

	cfg, err := LoadConfig(opts.ConfigFile)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = flagCfg.Database
	}
	if flags.Changed("archive-dir") {
		cfg.ArchiveDir = flagCfg.ArchiveDir
	}
	if flags.Changed("changelog") {
		cfg.Changelog = flagCfg.Changelog
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = flagCfg.BaseURL
	}
	if flags.Changed("zip") {
		cfg.GeoZip = flagCfg.GeoZip
	}
	if flags.Changed("radius") {
		cfg.GeoRadius = flagCfg.GeoRadius
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagCfg.Timeout
	}
	if flags.Changed("deadline") {
		cfg.Deadline = flagCfg.Deadline
	}
	if flags.Changed("fetch-attempts") {
		cfg.FetchAttempts = flagCfg.FetchAttempts
	}
	if flags.Changed("metrics") {
		cfg.MetricsAddr = flagCfg.MetricsAddr
	}

	if cfg.Database == "" {
		return Config{}, fmt.Errorf("database path is required")
	}
	return cfg, nil
}
