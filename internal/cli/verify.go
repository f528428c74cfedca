package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/shivanshkc/tokbench/internal/config"
	"github.com/shivanshkc/tokbench/pkg/api"
	"github.com/shivanshkc/tokbench/pkg/httpx"
)

const (
	verifyPrompt      = "Hello! Please introduce yourself briefly."
	verifyMaxTokens   = 200
	verifyTemperature = 0.7
	verifyTimeout     = 120 * time.Second
)

// verifyCmd sends a single non-streaming request to check that the endpoint
// is up and the model answers, before committing to a full sweep.
//
// The request is retried while the server reports itself unavailable, which
// covers servers that are still loading the model.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the endpoint answers a chat completion.",
	Long:  "Sends one non-streaming chat completion and prints the reply and how long it took.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		attempts, err := cmd.Flags().GetInt("attempts")
		if err != nil {
			return err
		}
		delay, err := cmd.Flags().GetDuration("delay")
		if err != nil {
			return err
		}

		policy := httpx.RetryPolicy{
			MaxAttempts: attempts,
			Delay:       delay,
			MaxDelay:    30 * time.Second,
			RetryStatus: httpx.RetryOnUnavailable,
		}
		return runVerify(cmd.Context(), cfg, policy, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Int("attempts", 1, "Number of attempts while the server is unavailable.")
	verifyCmd.Flags().Duration("delay", 2*time.Second, "Wait before the first retry. Doubles after each attempt.")
}

// runVerify performs the check and prints its outcome to out.
func runVerify(ctx context.Context, cfg *config.Config, policy httpx.RetryPolicy, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	client := api.NewClient(cfg.BaseURL, nil, policy)

	_, _ = fmt.Fprintf(out, "Connecting to %s (model %s)...\n", cfg.BaseURL, cfg.Model)
	start := time.Now()

	completion, err := client.ChatCompletion(ctx, api.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    []api.ChatMessage{{Role: api.RoleUser, Content: verifyPrompt}},
		Temperature: verifyTemperature,
		MaxTokens:   verifyMaxTokens,
	})
	if err != nil {
		_, _ = fmt.Fprintln(out, text.FgRed.Sprint("Endpoint check failed."))
		return fmt.Errorf("chat completion failed: %w", err)
	}
	elapsed := time.Since(start)

	_, _ = fmt.Fprintln(out, text.FgGreen.Sprintf("Endpoint is responding (%.2fs).", elapsed.Seconds()))
	if completion.Usage.CompletionTokens > 0 {
		_, _ = fmt.Fprintf(out, "Tokens: %d prompt, %d completion\n",
			completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	}
	_, _ = fmt.Fprint(out, text.FgBlue.Sprint("Assistant: "))
	_, _ = fmt.Fprintln(out, completion.Content())

	return nil
}
