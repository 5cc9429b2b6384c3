// ABOUTME: Entry point for the coven-supervisor server
// ABOUTME: Routes each incoming task to the best agent on its team

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-supervisor/internal/client"
	"github.com/2389/coven-supervisor/internal/config"
	"github.com/2389/coven-supervisor/internal/gateway"
)

// version is overridden at build time with -ldflags "-X main.version=<tag>".
var version = "dev"

const banner = `
                                                                 _
  ___ _____   _____ _ __        ___ _   _ _ __   ___ _ ____   _(_)___  ___  _ __
 / __/ _ \ \ / / _ \ '_ \ _____/ __| | | | '_ \ / _ \ '__\ \ / / / __|/ _ \| '__|
| (_| (_) \ V /  __/ | | |_____\__ \ |_| | |_) |  __/ |   \ V /| \__ \ (_) | |
 \___\___/ \_/ \___|_| |_|     |___/\__,_| .__/ \___|_|    \_/ |_|___/\___/|_|
                                         |_|
`

func usage() {
	fmt.Println("Usage: coven-supervisor <command> [-config PATH] [-env PATH]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the supervisor")
	fmt.Println("  health    Check supervisor health")
	fmt.Println("  agents    Show how many agents are connected")
	fmt.Println("  version   Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file (YAML, or TOML when it ends in .toml)")
	envPath := fs.String("env", ".env", "dotenv file loaded before the config")
	_ = fs.Parse(os.Args[2:])

	if err := loadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, *configPath)
	case "health":
		err = runHealth(ctx, *configPath)
	case "agents":
		err = runAgents(ctx, *configPath)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func runServe(ctx context.Context, configPath string) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Routing:   ")
	cyan.Print(cfg.Routing.Policy)
	if cfg.Routing.DefaultAgent != "" {
		gray.Printf(" (default %s)", cfg.Routing.DefaultAgent)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Agents:    %d configured\n", len(cfg.Agents.URLs))
	if len(cfg.Agents.URLs) == 0 {
		yellow.Println("      no agents configured; add some with coven-supervisorctl team add")
	}

	fmt.Println()

	logger.Info("starting coven-supervisor",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// localURL is the address a local command uses to reach the configured listener.
func localURL(cfg *config.Config) string {
	return fmt.Sprintf("http://%s", cfg.Server.HTTPAddr)
}

func runHealth(ctx context.Context, configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c := client.New(client.Params{BaseURL: localURL(cfg)})
	defer c.Close()

	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("healthy")
	return nil
}

func runAgents(ctx context.Context, configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c := client.New(client.Params{BaseURL: localURL(cfg)})
	defer c.Close()

	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetching team status: %w", err)
	}

	fmt.Printf("%d of %d agents connected (%s)\n", st.ConnectedAgents, st.TotalAgents, st.Health)
	return nil
}
