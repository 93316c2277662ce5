// ABOUTME: Operator CLI for inspecting and repairing conversation state
// ABOUTME: Opens the bot's SQLite store directly; run it while the bot is stopped or idle

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-script/internal/config"
	"github.com/2389/coven-script/internal/store"
)

const banner = `
                                                  _       _                 _           _
  ___ _____   _____ _ __        ___  ___ _ __ (_)_ __ | |_       __ _  __| |_ __ ___ (_)_ __
 / __/ _ \ \ / / _ \ '_ \ _____/ __|/ __| '__|| | '_ \| __|____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| (_) \ V /  __/ | | |_____\__ \ (__| |   | | |_) | ||_____| (_| | (_| | | | | | | | | | |
 \___\___/ \_/ \___|_| |_|     |___/\___|_|   |_| .__/ \__|     \__,_|\__,_|_| |_| |_|_|_| |_|
                                                 |_|
`

func main() {
	_ = godotenv.Load()

	args := os.Args[1:]
	dbPath := ""
	for len(args) >= 2 && (args[0] == "--db" || args[0] == "-d") {
		dbPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, args := args[0], args[1:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	if err := run(cmd, args, dbPath); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, dbPath string) error {
	path, err := resolveDBPath(dbPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	a := &admin{store: st, out: os.Stdout}
	return a.dispatch(context.Background(), cmd, args)
}

// resolveDBPath picks --db, then COVEN_SCRIPT_DB, then the store path in the
// bot's config file.
func resolveDBPath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if p := os.Getenv("COVEN_SCRIPT_DB"); p != "" {
		return p, nil
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return "", fmt.Errorf("no --db given and config unreadable: %w", err)
	}
	if cfg.Store.Driver != config.DriverSQLite {
		return "", fmt.Errorf("config uses the %s store; nothing to inspect", cfg.Store.Driver)
	}
	return cfg.Store.Path, nil
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: coven-script-admin [--db PATH] <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  list [--limit N]         List conversations, most recent first")
	fmt.Println("  show <id>                Show one conversation's stage and guards")
	fmt.Println("  history <id> [--limit N] Show the dispatch ledger for a conversation")
	fmt.Println("  set-stage <id> <stage>   Move a conversation to a stage")
	fmt.Println("  unmark <id> <stage>      Clear one stage's guard so it runs again")
	fmt.Println("  reset <id>               Clear stage, guards and finalized flag")
	fmt.Println("  finalize <id>            Stop the bot from answering a conversation")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  COVEN_SCRIPT_DB          Store path (overrides the config file)")
	fmt.Println("  COVEN_SCRIPT_CONFIG      Config file used to find the store path")
	fmt.Println()
}
