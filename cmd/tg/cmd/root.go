// Package cmd provides turbogrep's CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/turbopuffer/turbogrep/internal/embed"
	"github.com/turbopuffer/turbogrep/internal/logging"
	"github.com/turbopuffer/turbogrep/internal/metrics"
	"github.com/turbopuffer/turbogrep/internal/remoteindex"
	"github.com/turbopuffer/turbogrep/internal/search"
	"github.com/turbopuffer/turbogrep/internal/settings"
	tgsync "github.com/turbopuffer/turbogrep/internal/sync"
	"github.com/turbopuffer/turbogrep/internal/walker"
	"github.com/turbopuffer/turbogrep/pkg/version"
)

var (
	flagProvider string
	flagRegion   string
	flagDebug    bool

	loggingCleanup func()
)

// NewRootCmd creates the root tg command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tg",
		Short:   "Semantic code search over a remote turbopuffer index",
		Version: version.Version,
		Long: `tg indexes a codebase into a turbopuffer namespace and searches it
by meaning, not just keyword match.

Run 'tg sync' once to build the index, then 'tg search "<query>"' to
search it. 'tg watch' keeps the index current as files change.`,
	}
	cmd.SetVersionTemplate("tg version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "embedding provider: voyage or local (default voyage)")
	cmd.PersistentFlags().StringVar(&flagRegion, "region", "", "turbopuffer region (default: the persisted setting, else gcp-us-east4; not auto-detected)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		cfg := logging.FromEnv()
		if flagDebug {
			cfg = logging.VerboseConfig()
		}
		logger, cleanup, err := logging.Setup(cfg)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)

		if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
			if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
				logger.Warn("sentry init failed", "error", err)
			}
		}
		if addr := os.Getenv("TG_METRICS_ADDR"); addr != "" {
			startMetricsServer(addr, logger)
		}
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		sentry.Flush(2 * time.Second)
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
		return nil
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// startMetricsServer serves Prometheus metrics on addr in the
// background. Bind failures are logged, not fatal: metrics are a
// diagnostic aid, not a requirement for search/sync to function.
func startMetricsServer(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
}

// resolvedSettings merges persisted settings with the --provider/--region
// flags, flags taking precedence.
func resolvedSettings() (provider, region string, err error) {
	s, err := settings.Load()
	if err != nil {
		return "", "", fmt.Errorf("loading settings: %w", err)
	}
	provider = flagProvider
	if provider == "" {
		provider = os.Getenv("TG_EMBEDDER")
	}
	if provider == "" {
		provider = s.EmbeddingProvider
	}
	region = flagRegion
	if region == "" {
		region = s.TurbopufferRegion
	}
	return provider, region, nil
}

// buildOrchestrator wires an embedder, remote index client, walker and
// synchronizer into a search.Orchestrator, the shared dependency graph
// every subcommand needs.
func buildOrchestrator(ctx context.Context) (*search.Orchestrator, error) {
	providerName, region, err := resolvedSettings()
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(ctx, embed.Provider(providerName), "")
	if err != nil {
		return nil, fmt.Errorf("constructing embedder: %w", err)
	}

	m := metrics.New("turbogrep")
	client := remoteindex.New(apiKeyFromEnv(), region, m)

	w, err := walker.New()
	if err != nil {
		return nil, fmt.Errorf("constructing walker: %w", err)
	}

	synchronizer := tgsync.New(w, embedder, client, m)

	effectiveProvider := providerName
	if effectiveProvider == "" {
		effectiveProvider = string(embed.ProviderVoyage)
	}

	return &search.Orchestrator{
		Embedder:      embedder,
		Client:        client,
		Synchronizer:  synchronizer,
		Metrics:       m,
		EmbedProvider: effectiveProvider,
	}, nil
}

func apiKeyFromEnv() string {
	return os.Getenv("TURBOPUFFER_API_KEY")
}
