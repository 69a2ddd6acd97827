package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smallnest/ragpipe/config"
	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/log"
	"github.com/smallnest/ragpipe/metrics"
)

// app carries state shared by the subcommands.
type app struct {
	cfgFile     string
	envFile     string
	metricsAddr string

	cfg    config.Config
	logger log.Logger
	tracer *graph.Tracer

	services services
	server   *http.Server
}

func newApp() *app {
	return &app{services: defaultServices()}
}

// NewRootCommand creates the root command.
func NewRootCommand(version, commit string) *cobra.Command {
	return newRootCommand(newApp(), version, commit)
}

func newRootCommand(a *app, version, commit string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragpipe",
		Short: "Retrieval augmented generation over a crawled corpus",
		Long: `ragpipe loads crawled pages from a database, a Redis instance or local files,
ranks them against a question with BM25 or embeddings, and asks a language model
to answer using only the retrieved pages.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "ragpipe.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")

	rootCmd.AddCommand(newIndexCommand(a))
	rootCmd.AddCommand(newQueryCommand(a))
	rootCmd.AddCommand(newDrawCommand(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a.logger = logger
	log.SetDefaultLogger(logger)

	if cfg.Metrics.Addr != "" {
		return a.serveMetrics(cmd.Context(), cfg.Metrics.Addr)
	}
	return nil
}

func newLogger(cfg config.Config) (log.Logger, error) {
	level := cfg.LogLevel()
	if cfg.Log.Format != "zap" {
		return log.NewDefaultLogger(level), nil
	}

	zcfg := zap.NewProductionConfig()
	if level == log.LogLevelDebug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	z, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return log.NewZapLogger(z, level), nil
}

// serveMetrics starts the metrics endpoint and routes pipeline trace events
// into a metrics collector.
func (a *app) serveMetrics(ctx context.Context, addr string) error {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}
	a.tracer = graph.NewTracer(graph.WithoutSpans())
	a.tracer.AddHook(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server: %v", err)
		}
	}()
	a.logger.Info("serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

func (a *app) shutdown() error {
	if z, ok := a.logger.(*log.ZapLogger); ok {
		_ = z.Sync()
	}
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}
