package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/discovery"
	"github.com/standardbeagle/callmap/internal/display"
	"github.com/standardbeagle/callmap/internal/phpindex"
)

const defaultCallersTimeout = 30 * time.Second

func buildIndex(ctx context.Context, cfg *config.Config) (*phpindex.Index, error) {
	start := time.Now()
	idx, err := phpindex.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stats := idx.Stats()
	debugf("indexed %d files (%d declarations, %d call sites) in %v",
		stats.Files, stats.Declarations, stats.CallSites, time.Since(start))
	return idx, nil
}

// callersOptions maps the callers flags onto the configured engine options
func callersOptions(c *cli.Context, cfg *config.Config) discovery.Options {
	opts := discovery.OptionsFromConfig(cfg)
	depth := c.Int("depth")
	if depth > 0 {
		opts.AutoExpandDepth = min(depth-1, opts.MaxDepth)
	}
	if c.Bool("no-cache-warm") {
		opts.AutoExpandDepth = 0
	}
	return opts
}

func callersCommand(c *cli.Context) error {
	query := strings.TrimSpace(c.Args().First())
	if query == "" {
		return cli.Exit("callers requires a symbol, e.g. callmap callers 'OrderService::place'", 2)
	}
	format := c.String("format")
	switch format {
	case display.FormatText, display.FormatJSON, display.FormatCompact:
	default:
		return cli.Exit(fmt.Sprintf("unknown format %q, want text, json or compact", format), 2)
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	idx, err := buildIndex(ctx, cfg)
	if err != nil {
		return err
	}

	matches, err := idx.Lookup(query)
	if err != nil {
		if errors.Is(err, phpindex.ErrSymbolNotFound) {
			return cli.Exit(notFoundMessage(idx, query), 1)
		}
		return err
	}
	if len(matches) > 1 {
		fmt.Fprintf(c.App.ErrWriter, "%d declarations match %q, showing %s\n", len(matches), query, matches[0].Signature())
	}

	engine := discovery.New(idx, callersOptions(c, cfg))
	defer engine.Dispose()
	if c.Bool("trace") {
		stop := discovery.Trace(engine, c.App.ErrWriter)
		defer stop()
	}

	root, err := engine.BuildInitialTree(matches[0])
	if err != nil {
		return err
	}
	engine.StartDiscovery(root, nil, nil)

	waitCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()
	if err := engine.AwaitIdle(waitCtx); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "discovery incomplete after %v: %s\n", c.Duration("timeout"), engine.QueueStatus())
	}
	if err := engine.Sync(ctx); err != nil {
		return err
	}

	formatter := display.NewTreeFormatter(display.FormatterOptions{
		Format:    format,
		ShowLines: true,
		ShowState: true,
		MaxDepth:  max(c.Int("depth"), 0),
	})
	fmt.Fprintln(c.App.Writer, formatter.Format(root))
	return nil
}

func notFoundMessage(idx *phpindex.Index, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no declaration matches %q", query)
	if suggestions := idx.Suggest(query, 5); len(suggestions) > 0 {
		sb.WriteString("\ndid you mean:")
		for _, s := range suggestions {
			fmt.Fprintf(&sb, "\n  %s (%s:%d)", s.Symbol.Signature(), s.Symbol.File, s.Symbol.Line)
		}
	}
	return sb.String()
}
