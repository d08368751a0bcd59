package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/kiln/internal/api"
	"github.com/seantiz/kiln/internal/config"
	"github.com/seantiz/kiln/internal/handler"
	"github.com/seantiz/kiln/internal/store"
)

type serveOptions struct {
	listenAddr         string
	dbPath             string
	logLevel           string
	numThreads         int
	numBlockingThreads int
}

func newServeCommand() *cobra.Command {
	cfg := config.Load()
	opts := &serveOptions{
		listenAddr:         cfg.ListenAddr,
		dbPath:             cfg.DBPath,
		logLevel:           cfg.LogLevel.String(),
		numThreads:         cfg.NumThreads,
		numBlockingThreads: cfg.NumBlockingThreads,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.ListenAddr = opts.listenAddr
			cfg.DBPath = opts.dbPath
			cfg.LogLevel = config.ParseLogLevel(opts.logLevel)
			cfg.NumThreads = opts.numThreads
			cfg.NumBlockingThreads = opts.numBlockingThreads
			return runServe(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.listenAddr, "listen", opts.listenAddr, "HTTP listen address")
	f.StringVar(&opts.dbPath, "db", opts.dbPath, "SQLite database path for execution records")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug|info|warn|error)")
	f.IntVar(&opts.numThreads, "threads", opts.numThreads, "compute worker count")
	f.IntVar(&opts.numBlockingThreads, "blocking-threads", opts.numBlockingThreads, "maximum concurrent blocking kernels")

	return cmd
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	logger := config.NewLogger(cmd.OutOrStdout(), cfg.LogLevel)

	logger.Info("kiln: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"num_threads", cfg.NumThreads,
		"num_blocking_threads", cfg.NumBlockingThreads,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	h := handler.New(handler.Options{
		Logger:             logger,
		Store:              db,
		NumThreads:         cfg.NumThreads,
		NumBlockingThreads: cfg.NumBlockingThreads,
	})
	defer h.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(cfg.ListenAddr, h, db, logger)
	return srv.Run(ctx)
}
