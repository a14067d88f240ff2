package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/unhcr-mcp/internal/unhcr"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

// errQueryFailed is returned when the upstream answered with a failure object.
var errQueryFailed = errors.New("query failed")

func queryCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Fetch one endpoint and print the JSON response",
		ArgsUsage: "<population|demographics|asylum-applications|asylum-decisions|solutions>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "coo", Usage: "country of origin ISO3 code(s), comma-separated"},
			&cli.StringFlag{Name: "coa", Usage: "country of asylum ISO3 code(s), comma-separated"},
			&cli.StringFlag{Name: "year", Usage: "year or comma-separated years"},
			&cli.BoolFlag{Name: "coo-all", Usage: "break down by country of origin"},
			&cli.BoolFlag{Name: "coa-all", Usage: "break down by country of asylum"},
			&cli.BoolFlag{Name: "pop-type", Usage: "break down by population type (demographics only)"},
		},
		Action: a.query,
	}
}

func (a *app) query(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("query: exactly one endpoint argument required")
	}
	endpoint, err := unhcr.ParseEndpoint(cmd.Args().First())
	if err != nil {
		return err
	}

	res := a.client().Query(ctx, endpoint, unhcr.Query{
		Origin:          cmd.String("coo"),
		Asylum:          cmd.String("coa"),
		Years:           cmd.String("year"),
		OriginBreakdown: cmd.Bool("coo-all"),
		AsylumBreakdown: cmd.Bool("coa-all"),
		PopulationType:  cmd.Bool("pop-type"),
	})

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("query: encode result: %w", err)
	}
	fmt.Fprintln(a.stdout, string(out))

	if res.IsError() {
		color.New(color.FgRed, color.Bold).Fprintf(a.stderr, "%s: %v\n", endpoint, res[unhcr.KeyError])
		return errQueryFailed
	}
	return nil
}
