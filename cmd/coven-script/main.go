// ABOUTME: Entry point for coven-script, the staged sales-script chat bot
// ABOUTME: Loads config, prints the banner and runs or checks the bot

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-script/internal/config"
	"github.com/2389/coven-script/internal/script"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                  _       _
  ___ _____   _____ _ __        ___  ___ _ __ (_)_ __ | |_
 / __/ _ \ \ / / _ \ '_ \ _____/ __|/ __| '__|| | '_ \| __|
| (_| (_) \ V /  __/ | | |_____\__ \ (__| |   | | |_) | |_
 \___\___/ \_/ \___|_| |_|     |___/\___|_|   |_| .__/ \__|
                                                 |_|
`

func main() {
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	// A missing .env is fine; values may come from the real environment.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "run":
		err = runBot(ctx)
	case "check":
		err = runCheck()
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: coven-script [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Connect and answer conversations (default)")
	fmt.Println("  check     Validate the config and script, then print the stage plan")
	fmt.Println("  version   Print the version")
	fmt.Println()
	fmt.Println("The config path is taken from COVEN_SCRIPT_CONFIG or ~/.config/coven/script.yaml.")
}

func runBot(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Transport: %s\n", cfg.Transport.Kind)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s", cfg.Store.Driver)
	if cfg.Store.Driver == config.DriverSQLite {
		gray.Printf(" (%s)", cfg.Store.Path)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Script:    %s\n\n", cfg.Script.Path)

	logger.Info("starting coven-script", "config", configPath, "transport", cfg.Transport.Kind)
	return run(ctx, cfg, logger)
}

func runCheck() error {
	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sc, err := script.Load(cfg.Script.Path, cfg.Delays)
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ %s\n", configPath)
	green.Printf("✓ %s\n\n", cfg.Script.Path)

	return writePlan(os.Stdout, cfg, sc)
}
