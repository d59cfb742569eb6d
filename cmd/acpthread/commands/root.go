// Package commands provides the CLI commands for acpthread.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/acpthread/internal/config"
	"github.com/opencode-ai/acpthread/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	flagDirectory string
	flagLogLevel  string
	flagAgent     string
)

var rootCmd = &cobra.Command{
	Use:   "acpthread",
	Short: "acpthread - drive coding agents over the agent-client protocol",
	Long: `acpthread spawns an agent process, speaks the agent-client protocol
to it over stdio, and tracks the conversation as a thread: streamed
messages, tool calls, the agent's plan, and per-file changes.

Run 'acpthread run' for a one-shot prompt turn, or 'acpthread serve'
to expose a thread over HTTP.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDirectory, "directory", "d", "", "Working directory (defaults to cwd)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagAgent, "agent", "", "Agent command to spawn (overrides config)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("acpthread %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// Execute runs the root command.
func Execute() error {
	// Optional .env; missing files are fine.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// workDir resolves the effective working directory.
func workDir() (string, error) {
	if flagDirectory != "" {
		return flagDirectory, nil
	}
	return os.Getwd()
}

// loadSettings assembles config for the resolved directory and applies
// the CLI overrides on top.
func loadSettings() (string, *config.Settings, error) {
	dir, err := workDir()
	if err != nil {
		return "", nil, err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return "", nil, err
	}
	if flagLogLevel != "" {
		settings.LogLevel = flagLogLevel
	}
	if flagAgent != "" {
		settings.AgentCommand = strings.Fields(flagAgent)
	}

	logging.Init(logging.Config{Level: logging.ParseLevel(settings.LogLevel), Output: os.Stderr})
	return dir, settings, nil
}
