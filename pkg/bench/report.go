package bench

import (
	"time"
)

// LevelReport is the summary of one concurrency level.
type LevelReport struct {
	Concurrency   int           `json:"concurrency" yaml:"concurrency"`
	TotalRequests int           `json:"total_requests" yaml:"total_requests"`
	Succeeded     int           `json:"succeeded" yaml:"succeeded"`
	Failed        int           `json:"failed" yaml:"failed"`
	WallTime      time.Duration `json:"wall_time_ns" yaml:"wall_time_ns"`

	// Per-request distributions over successful requests. Durations are in seconds.
	TTFT    PercentileStats `json:"ttft_s" yaml:"ttft_s"`
	ITL     PercentileStats `json:"itl_s" yaml:"itl_s"`
	Latency PercentileStats `json:"latency_s" yaml:"latency_s"`
	TPS     PercentileStats `json:"tps" yaml:"tps"`

	TotalTokens int `json:"total_tokens" yaml:"total_tokens"`
	// SystemTPS is the total tokens generated per second of wall time.
	SystemTPS float64 `json:"system_tps" yaml:"system_tps"`
	// SystemQPS is the number of successful requests per second of wall time.
	SystemQPS float64 `json:"system_qps" yaml:"system_qps"`

	ErrorsByKind map[ErrorKind]int `json:"errors_by_kind,omitempty" yaml:"errors_by_kind,omitempty"`
	Failures     []RequestResult   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Results      []RequestResult   `json:"-" yaml:"-"`
}

// NewLevelReport aggregates a finished Run.
//
// Failed requests are counted but kept out of every distribution and of the
// system throughput figures.
func NewLevelReport(run Run) LevelReport {
	report := LevelReport{
		Concurrency:   run.Concurrency,
		TotalRequests: run.TotalRequests,
		WallTime:      run.WallTime,
		Results:       run.Results,
	}

	var ttfts, itls, latencies, tpss []float64
	for _, result := range run.Results {
		if !result.Success {
			report.Failed++
			report.Failures = append(report.Failures, result)
			if report.ErrorsByKind == nil {
				report.ErrorsByKind = map[ErrorKind]int{}
			}
			report.ErrorsByKind[result.ErrorKind]++
			continue
		}

		report.Succeeded++
		report.TotalTokens += result.TokenCount
		ttfts = append(ttfts, result.TTFT.Seconds())
		itls = append(itls, result.ITL.Seconds())
		latencies = append(latencies, result.Latency.Seconds())
		tpss = append(tpss, result.TPS)
	}

	report.TTFT = Summarize(ttfts)
	report.ITL = Summarize(itls)
	report.Latency = Summarize(latencies)
	report.TPS = Summarize(tpss)

	if wall := run.WallTime.Seconds(); wall > 0 {
		report.SystemTPS = float64(report.TotalTokens) / wall
		report.SystemQPS = float64(report.Succeeded) / wall
	}

	return report
}

// SweepReport is the outcome of a whole benchmark session.
type SweepReport struct {
	ID         string        `json:"id" yaml:"id"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Settings   Settings      `json:"settings" yaml:"settings"`
	Levels     []LevelReport `json:"levels" yaml:"levels"`
}
