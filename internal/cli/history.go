package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/shivanshkc/tokbench/internal/store"
)

// historyCmd lists sweeps recorded with `bench --store`.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded benchmark sweeps.",
	Long:  "Lists the sweeps recorded in a SQLite store, most recent first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Store.Path == "" {
			return fmt.Errorf("a store is required, set --store or TOKBENCH_STORE_PATH")
		}

		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		return runHistory(cmd.Context(), cfg.Store.Path, limit, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("store", "", "SQLite database written by `bench --store`.")
	historyCmd.Flags().Int("limit", 20, "Maximum number of sweeps to list. Zero lists all.")
}

// runHistory prints the most recent sweeps of the store at path.
func runHistory(ctx context.Context, path string, limit int, out io.Writer) error {
	db, err := store.New(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	summaries, err := store.NewSweepStore(db).List(ctx, limit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(out, "No sweeps recorded.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Started", "Model", "Endpoint", "Concurrency", "Peak TPS", "Failed"})
	for _, s := range summaries {
		levels := make([]string, 0, len(s.Levels))
		for _, level := range s.Levels {
			levels = append(levels, strconv.Itoa(level))
		}
		tw.AppendRow(table.Row{
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Model, s.BaseURL,
			strings.Join(levels, ","), fmt.Sprintf("%.2f", s.PeakSystemTPS), s.Failed,
		})
	}
	tw.Render()

	return nil
}
