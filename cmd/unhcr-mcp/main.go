package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dusk-indust/unhcr-mcp/internal/config"
	"github.com/dusk-indust/unhcr-mcp/internal/logging"
	"github.com/dusk-indust/unhcr-mcp/internal/mcptools"
	"github.com/dusk-indust/unhcr-mcp/internal/unhcr"
	"github.com/urfave/cli/v3"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, os.Getenv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what the subcommands share once the root command has loaded
// configuration.
type app struct {
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	a := &app{getenv: getenv, stdout: stdout, stderr: stderr}
	return a.command().Run(ctx, args)
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "unhcr-mcp",
		Version:   version,
		Usage:     "MCP server for UNHCR forcibly displaced population statistics",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config-dir",
				Usage: "directory containing unhcr-mcp.yml, .yaml or .toml",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level: trace, debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format: text or json",
			},
		},
		Before: a.setup,
		Action: a.serveStdio,
		Commands: []*cli.Command{
			{
				Name:   "stdio",
				Usage:  "Serve MCP over stdin/stdout (default)",
				Action: a.serveStdio,
			},
			{
				Name:  "http",
				Usage: "Serve MCP over streamable HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default :$PORT or :8080)"},
					&cli.StringFlag{Name: "path", Usage: "HTTP path for the MCP endpoint (default /mcp)"},
				},
				Action: a.serveHTTP,
			},
			queryCommand(a),
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintf(a.stdout, "unhcr-mcp version %s\n", cmd.Root().Version)
					return nil
				},
			},
		},
	}
}

// setup loads configuration and builds the logger before any subcommand runs.
func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config-dir"))
	if err != nil {
		return ctx, err
	}
	if err := cfg.ApplyEnv(a.getenv); err != nil {
		return ctx, err
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = cmd.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return ctx, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, a.stderr)
	if err != nil {
		return ctx, err
	}

	a.cfg = cfg
	a.logger = logger
	return ctx, nil
}

func (a *app) client() *unhcr.Client {
	opts := append(a.cfg.ClientOptions(), unhcr.WithLogger(a.logger.With("component", "unhcr")))
	return unhcr.NewClient(opts...)
}

func (a *app) statsService() *mcptools.StatsService {
	return mcptools.NewStatsService(a.client(), a.logger.With("component", "mcptools"))
}

func (a *app) serveStdio(ctx context.Context, _ *cli.Command) error {
	a.logger.Info("serving MCP over stdio", "version", version)
	return mcptools.RunStdio(ctx, mcptools.NewUNHCRMCPServer(a.statsService()))
}

func (a *app) serveHTTP(ctx context.Context, cmd *cli.Command) error {
	addr, path := a.cfg.Addr, a.cfg.Path
	if cmd.IsSet("addr") {
		addr = cmd.String("addr")
	}
	if cmd.IsSet("path") {
		path = cmd.String("path")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with '/', got %q", path)
	}

	server := mcptools.NewUNHCRMCPServer(a.statsService())
	return mcptools.RunHTTP(ctx, server, addr, path, a.logger.With("component", "http"))
}
