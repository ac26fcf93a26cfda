package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v3"

	"github.com/starford/noteban/internal"
	pkgconfig "github.com/starford/noteban/pkg/config"
)

// loadConfig reads the config file named by the --config flag. The file is
// optional unless the flag was set explicitly; a missing default file just
// means defaults.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath, err := homedir.Expand(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if err := pkgconfig.LoadIfPresent(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func runResync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunResync(ctx, internal.WithConfig(cfg))
}

func runDoctor(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunDoctor(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "noteban",
		Usage:  "Markdown kanban note engine with HTTP, SSE, and MCP interfaces",
		Action: runServe,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "~/.noteban/config.yaml",
				Value:       "~/.noteban/config.yaml",
				Sources:     cli.EnvVars("NOTEBAN_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and event stream (the default)",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve tools to an MCP client over stdio",
				Action: runMCP,
			},
			{
				Name:   "resync",
				Usage:  "Rebuild the note cache for the active profile",
				Action: runResync,
			},
			{
				Name:   "doctor",
				Usage:  "Check the local setup and report problems",
				Action: runDoctor,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
