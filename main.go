package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offer-clv/pkg/calculator"
	"offer-clv/pkg/config"
	"offer-clv/pkg/dashboard"
	"offer-clv/pkg/database"
	"offer-clv/pkg/loader"
	"offer-clv/pkg/models"
	"offer-clv/pkg/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	configPath string
	dataRoot   string
	catalog    string
	history    string
	dsn        string
	asOf       string
	addr       string
	format     string
	out        string
	timeout    time.Duration
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "offer-clv",
		Short:        "Customer analysis: offers sent, repeaters and CLV per group",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "configs/default.yaml", "YAML config file")
	pf.StringVar(&opts.dataRoot, "data-root", "", "Root for web-style paths such as /data/offer_lookup.csv")
	pf.StringVar(&opts.catalog, "catalog", "", "Offer catalog location (path, http(s)://, s3://, table:)")
	pf.StringVar(&opts.history, "history", "", "Offer history location (path, http(s)://, s3://, table:)")
	pf.StringVar(&opts.dsn, "dsn", "", "Database for table: sources (mariadb://, mysql://, sqlite://)")
	pf.StringVar(&opts.asOf, "as-of", "", "Report date shown on the dashboard (YYYY-MM-DD)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Upper bound on one full load")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logs and load progress")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Load both datasets once and print the metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummary(cmd.Context(), opts)
		},
	}
	summary.Flags().StringVar(&opts.format, "format", "", "Output format: json, pretty, text, csv")
	summary.Flags().StringVar(&opts.out, "out", "", "Write output to file instead of stdout")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and the static data files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	serve.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address")

	root.AddCommand(summary, serve)
	return root
}

// resolveConfig layers the flags on top of file + env configuration.
func resolveConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Run.DataRoot, opts.dataRoot)
	override(&cfg.Run.Catalog, opts.catalog)
	override(&cfg.Run.History, opts.history)
	override(&cfg.Run.DSN, opts.dsn)
	override(&cfg.Run.AsOf, opts.asOf)
	override(&cfg.Run.Addr, opts.addr)
	override(&cfg.Run.Format, opts.format)
	if opts.timeout > 0 {
		cfg.Run.LoadTimeout = opts.timeout
	}
	if opts.verbose {
		cfg.Run.Verbose = true
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// pipeline holds the sources resolved from the configuration.
type pipeline struct {
	catalog loader.Source
	history loader.Source
	db      *sql.DB
}

func (p *pipeline) Close() {
	if p.db != nil {
		_ = p.db.Close()
	}
}

func (p *pipeline) run(ctx context.Context, timeout time.Duration, logger *zap.Logger) (models.AggregateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return calculator.Run(ctx, p.catalog, p.history, logger)
}

func buildPipeline(ctx context.Context, cfg config.Config, progress bool, logger *zap.Logger) (*pipeline, error) {
	r := loader.Resolver{
		Root:       cfg.Run.DataRoot,
		HTTPClient: &http.Client{Timeout: cfg.Run.LoadTimeout},
		Progress:   progress,
	}
	p := &pipeline{}

	if cfg.Run.DSN != "" {
		db, dsnUsed, err := database.Open(cfg.Run.DSN)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		p.db = db
		r.DB = db
		logger.Debug("database opened", zap.String("dsn", dsnUsed))
	}
	if loader.IsS3Location(cfg.Run.Catalog) || loader.IsS3Location(cfg.Run.History) {
		client, err := loader.NewS3Client(ctx, loader.S3Config{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint})
		if err != nil {
			p.Close()
			return nil, err
		}
		r.S3 = client
	}

	var err error
	if p.catalog, err = r.Resolve(cfg.Run.Catalog); err != nil {
		p.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if p.history, err = r.Resolve(cfg.Run.History); err != nil {
		p.Close()
		return nil, fmt.Errorf("history: %w", err)
	}
	return p, nil
}

func runSummary(ctx context.Context, opts *options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := buildPipeline(ctx, cfg, cfg.Run.Verbose, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.run(ctx, cfg.Run.LoadTimeout, logger)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	w := os.Stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeReport(w, cfg.Run.Format, cfg.Run.AsOf, res)
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	dash := dashboard.New(cfg.Run.AsOf, func(ctx context.Context) (models.AggregateResult, error) {
		return p.run(ctx, cfg.Run.LoadTimeout, logger)
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Run.Addr,
		Handler:           server.NewRouter(server.NewHandler(dash, cfg.Run.DataRoot, cfg.Run.LoadTimeout, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// initial load runs in the background: empty → loading → loaded | failed
	go func() { _ = dash.Refresh(ctx) }()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.Run.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
