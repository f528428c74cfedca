package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/shivanshkc/tokbench/pkg/bench"
)

// Format is an export format for a sweep report.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a format name. Matching is case-insensitive and "md"
// and "yml" are accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", name)
	}
}

// Write encodes sweep to w in the given format.
func Write(w io.Writer, format Format, sweep bench.SweepReport) error {
	switch format {
	case FormatMarkdown:
		return writeMarkdown(w, sweep)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(sweep); err != nil {
			return fmt.Errorf("failed to encode report as json: %w", err)
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(sweep); err != nil {
			return fmt.Errorf("failed to encode report as yaml: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to flush yaml report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile writes sweep to path, creating parent directories as needed.
func WriteFile(path string, format Format, sweep bench.SweepReport) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if errClose := file.Close(); errClose != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", errClose)
		}
	}()

	return Write(file, format, sweep)
}

func writeMarkdown(w io.Writer, sweep bench.SweepReport) error {
	var b strings.Builder
	settings := sweep.Settings

	b.WriteString("# Streaming Benchmark Report\n\n")
	fmt.Fprintf(&b, "- **Sweep ID:** %s\n", sweep.ID)
	fmt.Fprintf(&b, "- **Started:** %s\n", sweep.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Duration:** %s\n", FormatDuration(sweep.FinishedAt.Sub(sweep.StartedAt)))
	fmt.Fprintf(&b, "- **Endpoint:** %s\n", settings.BaseURL)
	fmt.Fprintf(&b, "- **Model:** %s\n", settings.Model)
	fmt.Fprintf(&b, "- **Input / Output Tokens:** %d / %d\n", settings.InputTokens, settings.OutputTokens)
	fmt.Fprintf(&b, "- **Requests per Level:** %d\n\n", settings.TotalRequests)

	if len(sweep.Levels) > 0 {
		b.WriteString("## Summary\n\n")
		summary := table.NewWriter()
		summary.AppendHeader(table.Row{"Concurrency", "Succeeded", "Failed", "TTFT P50", "ITL P50", "System QPS", "System TPS"})
		for _, level := range sweep.Levels {
			summary.AppendRow(table.Row{
				level.Concurrency, level.Succeeded, level.Failed,
				formatSeconds(level.TTFT.P50), formatSeconds(level.ITL.P50),
				fmt.Sprintf("%.2f", level.SystemQPS), fmt.Sprintf("%.2f", level.SystemTPS),
			})
		}
		b.WriteString(summary.RenderMarkdown())
		b.WriteString("\n\n")
	}

	for _, level := range sweep.Levels {
		fmt.Fprintf(&b, "## Concurrency %d\n\n", level.Concurrency)
		if level.Succeeded == 0 {
			b.WriteString("No successful requests.\n\n")
		} else {
			tw := table.NewWriter()
			appendStats(tw, level)
			b.WriteString(tw.RenderMarkdown())
			b.WriteString("\n\n")
			fmt.Fprintf(&b, "Total tokens: %d, wall time: %s\n\n", level.TotalTokens, FormatDuration(level.WallTime))
		}

		if len(level.Failures) > 0 {
			b.WriteString("### Failures\n\n")
			for _, f := range level.Failures {
				fmt.Fprintf(&b, "- Request %d: %s", f.RequestID, f.ErrorKind)
				if f.StatusCode != 0 {
					fmt.Fprintf(&b, " (%d)", f.StatusCode)
				}
				fmt.Fprintf(&b, ": %s\n", f.Error)
			}
			b.WriteString("\n")
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}
