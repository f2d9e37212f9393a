package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/dispatch"
	"inferd/internal/httpapi"
	"inferd/internal/llamaclient"
	"inferd/internal/session"
	"inferd/internal/supervisor"
	"inferd/internal/usage"

	sqlstore "inferd/internal/store"
)

func main() {
	var (
		cfgPath   string
		addr      string
		modelPath string
		dbPath    string
		pretty    bool
	)

	root := &cobra.Command{
		Use:           "inferd",
		Short:         "HTTP gateway supervising a local llama-server inference process",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				var err error
				cfg, err = config.Load(cfgPath, cfg)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("model") {
				cfg.ModelPath = modelPath
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return run(cfg, pretty)
		},
	}

	root.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (yaml, toml or json)")
	root.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :9000")
	root.Flags().StringVar(&modelPath, "model", "", "Path to the GGUF model file")
	root.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite database")
	root.Flags().BoolVar(&pretty, "pretty", false, "Human-readable log output")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "inferd:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, pretty bool) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	db, err := sqlstore.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	usageLog := usage.New(cfg.UsageQueueCap, db, log)
	sessions := session.NewStore(cfg.SessionTTL, cfg.SessionTurnCap, cfg.ContextTurns, log)

	client := llamaclient.New(fmt.Sprintf("http://%s:%d", cfg.LlamaHost, cfg.LlamaPort))
	sup := supervisor.New(supervisor.Config{
		Bin:               cfg.LlamaBin,
		ModelPath:         cfg.ModelPath,
		Host:              cfg.LlamaHost,
		Port:              cfg.LlamaPort,
		CtxSize:           cfg.CtxSize,
		Threads:           cfg.Threads,
		BatchSize:         cfg.BatchSize,
		GPULayers:         cfg.GPULayers,
		ExtraArgs:         cfg.LlamaExtraArgs,
		StartupTimeout:    cfg.StartupTimeout,
		ProbeInterval:     cfg.ProbeInterval,
		DegradedThreshold: cfg.DegradedThreshold,
		CrashThreshold:    cfg.CrashThreshold,
		MaxRestarts:       cfg.MaxRestarts,
		ShutdownGrace:     cfg.ShutdownGrace,
	}, client, log)

	dispatcher := dispatch.New(dispatch.Config{
		Slots:              cfg.Slots,
		SlotWait:           cfg.SlotWait,
		RequestTimeout:     cfg.RequestTimeout,
		ModelName:          cfg.ModelName,
		DefaultTemperature: cfg.DefaultTemperature,
		DefaultMaxTokens:   cfg.DefaultMaxTokens,
		MaxTokensCap:       cfg.MaxTokensCap,
	}, client, sup, sessions, usageLog, log)

	gw := &gateway{
		dispatcher: dispatcher,
		sup:        sup,
		sessions:   sessions,
		usage:      usageLog,
		db:         db,
		modelName:  cfg.ModelName,
		startedAt:  time.Now(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// HTTP comes up immediately; readiness follows supervisor health.
	go func() {
		if err := sup.Start(ctx); err != nil {
			log.Error().Err(err).Msg("model process failed to start")
		}
	}()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "OPTIONS"}, []string{"Accept", "Content-Type", "X-Log-Level"})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.ModelName).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		return fmt.Errorf("server error: %w", err)
	}

	// Stop accepting requests, then bring the process down, then flush the
	// usage queue before the database closes.
	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := sup.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("supervisor shutdown")
	}
	sessions.Close()
	usageLog.Close()
	log.Info().Msg("inferd stopped")
	return nil
}
