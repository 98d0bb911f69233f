package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

func symbolsCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	idx, err := buildIndex(c.Context, cfg)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(c.Args().First())
	found := idx.Symbols(query)
	if len(found) > 0 {
		for _, s := range found {
			fmt.Fprintf(c.App.Writer, "%s\t%s:%d\n", s.Signature(), s.File, s.Line)
		}
		return nil
	}
	if query == "" {
		fmt.Fprintln(c.App.Writer, "No declarations indexed")
		return nil
	}

	suggestions := idx.Suggest(query, c.Int("limit"))
	if len(suggestions) == 0 {
		return cli.Exit(fmt.Sprintf("no declaration matches %q", query), 1)
	}
	fmt.Fprintf(c.App.Writer, "No exact match for %q. Similar declarations:\n", query)
	for _, s := range suggestions {
		fmt.Fprintf(c.App.Writer, "%s\t%s:%d\t%.2f\n", s.Symbol.Signature(), s.Symbol.File, s.Symbol.Line, s.Score)
	}
	return nil
}
