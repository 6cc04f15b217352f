// ABOUTME: Entry point for handoff-gateway, the chat-to-operator handoff server
// ABOUTME: Cobra root command with serve, dialogs, token and health subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/handoff-gateway/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                     _        __  __
| |__   __ _ _ __   __| | ___  / _|/ _|
| '_ \ / _' | '_ \ / _' |/ _ \| |_| |_
| | | | (_| | | | | (_| | (_) |  _|  _|
|_| |_|\__,_|_| |_|\__,_|\___/|_| |_|
`

// stderr receives warnings that must not mix with command output.
var stderr io.Writer = os.Stderr

// configPath is the --config flag; empty means config.DefaultPath.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "handoff-gateway",
	Short: "Hand chat users over to human operators",
	Long: `handoff-gateway connects users of a Telegram or Matrix bot with human
operators. Users ask for an operator, operators accept the dialog and reply
through the same bot, and every message is kept in a transcript.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $HANDOFF_CONFIG or ~/.config/handoff/gateway.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dialogsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolveConfigPath picks the config file. A missing default file means the
// gateway is configured from the environment alone.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	return path, nil
}

// loadConfig resolves and loads the configuration, returning the path used.
func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
