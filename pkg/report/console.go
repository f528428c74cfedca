package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/shivanshkc/tokbench/pkg/bench"
)

const rule = 80

// Console prints a sweep's progress to a terminal.
//
// It implements bench.Observer.
type Console struct {
	out io.Writer
}

// NewConsole returns a Console that writes to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// PromptReady announces the shared prompt before the sweep starts.
func (c *Console) PromptReady(chars, words int) {
	_, _ = fmt.Fprintln(c.out, text.FgGreen.Sprintf("Prompt ready. Length in chars: %d, words: %d", chars, words))
}

// LevelStarted prints the banner of a concurrency level.
func (c *Console) LevelStarted(concurrency, totalRequests int) {
	banner := strings.Repeat("=", rule)
	_, _ = fmt.Fprintf(c.out, "\n%s\n%s\n%s\n", banner,
		text.FgCyan.Sprintf("Starting Benchmark | Concurrency: %d | Total Requests: %d", concurrency, totalRequests),
		banner)
}

// RequestFinished prints a one-line summary of a request.
func (c *Console) RequestFinished(_ int, result bench.RequestResult) {
	_, _ = fmt.Fprintln(c.out, RequestLine(result))
}

// LevelFinished prints the statistics table of a level, or a notice if no
// request succeeded.
func (c *Console) LevelFinished(report bench.LevelReport) {
	if report.Succeeded == 0 {
		_, _ = fmt.Fprintln(c.out, text.FgRed.Sprint("No successful requests."))
		return
	}

	_, _ = fmt.Fprintf(c.out, "\nDetailed Statistics (Concurrency %d)\n", report.Concurrency)

	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.SetStyle(table.StyleLight)
	appendStats(tw, report)
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Total Generated Tokens", report.TotalTokens})
	tw.AppendRow(table.Row{"Total Wall Time", FormatDuration(report.WallTime)})
	tw.AppendRow(table.Row{"System QPS", fmt.Sprintf("%.2f req/s", report.SystemQPS)})
	tw.AppendRow(table.Row{"System Throughput", fmt.Sprintf("%.2f tokens/s", report.SystemTPS)})
	if report.Failed > 0 {
		tw.AppendRow(table.Row{"Failed Requests", fmt.Sprintf("%d of %d", report.Failed, report.TotalRequests)})
	}
	tw.Render()
}

// RequestLine formats the console summary of one request.
func RequestLine(result bench.RequestResult) string {
	if !result.Success {
		return text.FgRed.Sprintf("   [Req %02d] Request failed (%s): %s", result.RequestID, result.ErrorKind, result.Error)
	}
	return fmt.Sprintf("   [Req %02d] TTFT: %.3fs | Tokens: %d | ITL: %.3fs | TPS: %.1f",
		result.RequestID, result.TTFT.Seconds(), result.TokenCount, result.ITL.Seconds(), result.TPS)
}

// appendStats adds the header and one row per distribution of the report.
func appendStats(tw table.Writer, report bench.LevelReport) {
	tw.AppendHeader(table.Row{"Metric", "Mean", "Min", "Max", "P50", "P95", "P99"})

	rows := []struct {
		name    string
		stats   bench.PercentileStats
		seconds bool
	}{
		{name: "TTFT", stats: report.TTFT, seconds: true},
		{name: "ITL", stats: report.ITL, seconds: true},
		{name: "Latency", stats: report.Latency, seconds: true},
		{name: "Req TPS", stats: report.TPS},
	}

	for _, r := range rows {
		format := func(v float64) string { return fmt.Sprintf("%.2f", v) }
		if r.seconds {
			format = formatSeconds
		}
		s := r.stats
		tw.AppendRow(table.Row{
			r.name, format(s.Mean), format(s.Min), format(s.Max), format(s.P50), format(s.P95), format(s.P99),
		})
	}
}
