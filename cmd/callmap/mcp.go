package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/callmap/internal/debug"
	"github.com/standardbeagle/callmap/internal/discovery"
	"github.com/standardbeagle/callmap/internal/mcp"
	"github.com/standardbeagle/callmap/internal/metrics"
	"github.com/standardbeagle/callmap/internal/watch"
)

func mcpCommand(c *cli.Context) error {
	// stdout carries JSON-RPC from here on
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx, err := buildIndex(ctx, cfg)
	if err != nil {
		return err
	}
	engine := discovery.New(idx, discovery.OptionsFromConfig(cfg))
	defer engine.Dispose()

	metricOpts := []metrics.Option{metrics.WithIndex(idx)}
	if cfg.Watch.Enabled {
		w, err := watch.New(cfg, idx, engine)
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		w.OnBatch(func(b watch.Batch) {
			debug.LogWatch("batch: %d changed, %d removed, %d cache entries invalidated",
				len(b.Changed), len(b.Removed), b.Invalidated)
		})
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer w.Stop()
		metricOpts = append(metricOpts, metrics.WithWatcher(w))
	}

	if cfg.Metrics.Addr != "" {
		reg := metrics.NewRegistry(metrics.NewCollector(engine, metricOpts...))
		srv, err := metrics.Listen(cfg.Metrics.Addr, reg)
		if err != nil {
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		debug.LogMCP("metrics on http://%s/metrics", srv.Addr())
		go func() {
			if err := srv.Serve(ctx); err != nil {
				debug.LogMCP("metrics server stopped: %v", err)
			}
		}()
	}

	server := mcp.NewServer(engine, idx, cfg)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
