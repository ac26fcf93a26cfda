package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/noteban/internal/mcpserver"
)

// RunMCP serves noteban tools to an MCP client over stdio. Logs go to
// stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.buildLogger(os.Stderr)
	slog.SetDefault(logger)

	eng, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	srv := mcpserver.New(eng.mgr, buildAI(cfg, logger))

	logger.Info("MCP server listening on stdio")
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}
