package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/debug"
	"github.com/standardbeagle/callmap/internal/version"

	"github.com/urfave/cli/v2"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath := c.String("config"); configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.Load(c.String("root"))
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludeFlags...))
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func debugf(format string, args ...interface{}) {
	debug.Printf(format+"\n", args...)
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "callmap",
		Usage:                  "Progressive caller trees for PHP projects",
		Version:                version.Current().String(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file (.kdl or .toml); defaults to the project .callmap.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Glob of files to index (repeatable, replaces configured includes)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Glob of files to skip (repeatable, added to configured excludes)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on host:port while the mcp command runs",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "callers",
				Aliases:   []string{"c"},
				Usage:     "Print the caller tree of a method or function",
				ArgsUsage: "<Class::method | function | path:line>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "depth",
						Aliases: []string{"d"},
						Value:   3,
						Usage:   "Caller levels to discover and display",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: text, json or compact",
					},
					&cli.DurationFlag{
						Name:    "timeout",
						Aliases: []string{"t"},
						Value:   defaultCallersTimeout,
						Usage:   "Stop waiting for discovery after this long and print what was found",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log node and queue events to stderr",
					},
					&cli.BoolFlag{
						Name:  "no-cache-warm",
						Usage: "Discover direct callers only, without background pre-expansion",
					},
				},
				Action: callersCommand,
			},
			{
				Name:      "symbols",
				Aliases:   []string{"s"},
				Usage:     "List declared methods and functions, or suggest near matches",
				ArgsUsage: "[query]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 10,
						Usage: "Maximum suggestions when nothing matches",
					},
				},
				Action: symbolsCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve caller discovery over MCP on stdio",
				Action: mcpCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		debug.CloseDebugLog()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	debug.CloseDebugLog()
}
