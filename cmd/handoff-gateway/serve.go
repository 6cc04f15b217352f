// ABOUTME: serve subcommand: prints the startup summary and runs the gateway
// ABOUTME: Blocks until SIGINT or SIGTERM

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/handoff-gateway/internal/config"
	"github.com/2389/handoff-gateway/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog := setupLogger(cfg.Logging)
	defer func() { _ = closeLog() }()

	printSummary(cfg, path)

	logger.Info("starting handoff-gateway",
		"config", path,
		"storage", cfg.Storage.Driver,
		"sessions", cfg.Sessions.Driver,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(cmd.Context())
}

func printSummary(cfg *config.Config, path string) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	line := func(label, value string) {
		green.Print("    ▶ ")
		fmt.Printf("%-10s %s\n", label+":", value)
	}

	if path == "" {
		line("Config", "environment only")
	} else {
		line("Config", path)
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		line("Storage", "sqlite "+cfg.Storage.SQLitePath)
	default:
		line("Storage", "files in "+cfg.Storage.DataDir)
	}
	line("Sessions", cfg.Sessions.Driver)

	if cfg.Telegram.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("%-10s ", "Telegram:")
		cyan.Printf("%d staff", len(cfg.Staff.Recipients()))
		if cfg.Staff.AnnounceChat != "" {
			gray.Print(" (+ announce chat)")
		}
		fmt.Println()
	}
	if cfg.Matrix.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("%-10s ", "Matrix:")
		cyan.Print(cfg.Matrix.UserID)
		gray.Printf(" (%d staff rooms)", len(cfg.Matrix.Staff.Recipients()))
		fmt.Println()
	}
	if cfg.Server.HTTPAddr != "" {
		line("HTTP", cfg.Server.HTTPAddr)
	}
	fmt.Println()
}
