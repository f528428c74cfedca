// Package cli contains all the command-line interface logic for the application,
// powered by the cobra library. It defines the root command, subcommands,
// and their respective flags.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootConfigPath holds the value of the root command's --config flag.
var rootConfigPath string

// rootCmd represents the base command when called without any subcommands.
// It serves as the entry point and parent for all other commands.
var rootCmd = &cobra.Command{
	Use:   "tokbench",
	Short: "Benchmark streaming chat-completion endpoints.",
	Long: `Benchmark streaming chat-completion endpoints.
tokbench measures time to first token, inter-token latency, end-to-end latency and
throughput of an OpenAI compatible API across a sweep of concurrency levels.

Every flag can also be set in a config file (--config) or through a TOKBENCH_
environment variable, e.g. TOKBENCH_BASE_URL or TOKBENCH_LOG_LEVEL.`,
	SilenceUsage: true,
}

// Execute is the primary entry point for the CLI application, called by main.go.
//
// It sets up a single, root cancellable context and wires it up to respond
// to OS interruption signals (like Ctrl+C or SIGTERM). This context is then passed down
// to all cobra commands, so an interrupted sweep still reports what it measured.
func Execute() error {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	// Create a root context that can be canceled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a channel to listen for specific OS signals.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	// Launch a goroutine to cancel the context upon receiving a signal.
	go func() {
		<-signals
		cancel()
	}()

	// Execute the root command with the cancellable context.
	return rootCmd.ExecuteContext(ctx)
}

// init configures the flags shared by every subcommand.
func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&rootConfigPath, "config", "", "Path of a config file (yaml, json or toml).")
	flags.StringP("base-url", "u", "http://localhost:8080", "Base URL of the API.")
	flags.StringP("model", "m", "gpt-4.1", "Name of the model to use.")
	flags.String("log-level", "info", "Log level: debug, info, warn or error.")
	flags.String("log-format", "text", "Log format: text or json.")
}
