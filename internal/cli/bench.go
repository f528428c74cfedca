package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivanshkc/tokbench/internal/config"
	"github.com/shivanshkc/tokbench/internal/metrics"
	"github.com/shivanshkc/tokbench/internal/store"
	"github.com/shivanshkc/tokbench/pkg/api"
	"github.com/shivanshkc/tokbench/pkg/bench"
	"github.com/shivanshkc/tokbench/pkg/httpx"
	"github.com/shivanshkc/tokbench/pkg/prompt"
	"github.com/shivanshkc/tokbench/pkg/report"
)

// benchCmd runs a benchmark sweep against the configured endpoint.
//
// Results are printed as they arrive. Once the sweep ends, even if it was
// interrupted, whatever was measured is exported and stored when configured.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark a streaming chat-completion endpoint.",
	Long: `Benchmark a streaming chat-completion endpoint.
A synthetic prompt is sent --requests times at each --concurrency level, and
per-request and system-level latency and throughput are reported per level.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		format, err := report.ParseFormat(cfg.Report.Format)
		if err != nil {
			return err
		}

		return runBench(cmd.Context(), cfg, format, report.NewConsole(cmd.OutOrStdout()), logger)
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	flags := benchCmd.Flags()
	flags.Int("input-tokens", 5000, "Approximate prompt length, in words.")
	flags.Int("output-tokens", 3000, "Maximum number of tokens to generate per request.")
	flags.Float64("temperature", 0.7, "Sampling temperature.")
	flags.IntP("requests", "n", 20, "Number of requests per concurrency level.")
	flags.IntSliceP("concurrency", "c", []int{1, 3}, "Concurrency levels to sweep, in order.")
	flags.Duration("cooldown", 3*time.Second, "Pause between concurrency levels.")
	flags.Duration("timeout", 0, "Per-request timeout. Zero means none.")
	flags.Float64("rate", 0, "Maximum request starts per second. Zero means unlimited.")
	flags.String("report", "", "Write the sweep report to this file.")
	flags.String("report-format", "markdown", "Report format: markdown, json or yaml.")
	flags.String("store", "", "Record the sweep in this SQLite database.")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the sweep, e.g. :9090.")
}

// runBench executes a full sweep as described by cfg.
func runBench(ctx context.Context, cfg *config.Config, format report.Format, console *report.Console, logger *slog.Logger) error {
	settings := cfg.Settings()

	// The prompt is generated once and shared by every request of the session.
	sharedPrompt := prompt.NewGenerator(nil).Generate(settings.InputTokens)
	console.PromptReady(len(sharedPrompt.Text), sharedPrompt.Words)

	// Keep one idle connection per worker so levels do not pay for reconnects.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = max(slices.Max(settings.ConcurrencyLevels), transport.MaxIdleConnsPerHost)
	client := api.NewClient(settings.BaseURL, &http.Client{Transport: transport}, httpx.RetryPolicy{})

	collector := &bench.Collector{
		Stream: bench.ChatCompletionStream(client, api.ChatCompletionRequest{
			Model:       settings.Model,
			Messages:    []api.ChatMessage{{Role: api.RoleUser, Content: sharedPrompt.Text}},
			Temperature: settings.Temperature,
			MaxTokens:   settings.OutputTokens,
			Stream:      true,
		}),
		Timeout: settings.RequestTimeout,
		Logger:  logger,
	}

	observers := bench.Observers{console}
	if cfg.Metrics.Addr != "" {
		recorder := metrics.NewRecorder()
		observers = append(observers, recorder)

		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := recorder.Serve(metricsCtx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	orchestrator := &bench.Orchestrator{
		Settings: settings,
		Collect:  collector.Collect,
		Observer: observers,
		Logger:   logger,
	}

	sweep, errSweep := orchestrator.Sweep(ctx)
	if errors.Is(errSweep, context.Canceled) {
		logger.Warn("sweep interrupted", "completed_levels", len(sweep.Levels))
	}
	if len(sweep.Levels) == 0 {
		return errSweep
	}

	if err := saveSweep(cfg, format, &sweep, logger); err != nil {
		return errors.Join(errSweep, err)
	}
	return errSweep
}

// saveSweep exports and stores a finished sweep, as configured.
func saveSweep(cfg *config.Config, format report.Format, sweep *bench.SweepReport, logger *slog.Logger) error {
	// The sweep context may already be canceled; saving should still happen.
	ctx := context.Background()

	if cfg.Store.Path != "" {
		db, err := store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate store: %w", err)
		}
		if err := store.NewSweepStore(db).Save(ctx, sweep); err != nil {
			return err
		}
		logger.Info("sweep stored", "sweep_id", sweep.ID, "path", cfg.Store.Path)
	}

	if cfg.Report.Path != "" {
		if err := report.WriteFile(cfg.Report.Path, format, *sweep); err != nil {
			return err
		}
		logger.Info("report written", "path", cfg.Report.Path, "format", format)
	}

	return nil
}
