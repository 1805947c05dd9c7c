package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/internal/metrics"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/internal/server"
	"github.com/golovatskygroup/mcp-atlas/internal/tools"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

var Version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[mcp-atlas] %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mcp-atlas",
		Usage:   "MCP server exposing Jira and Confluence search over stdio",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file (environment variables take precedence)",
				EnvVars: []string{"MCP_ATLAS_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load variables from a .env file before starting (repeatable; existing variables win)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"MCP_ATLAS_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (e.g. :9090); empty disables",
				EnvVars: []string{"MCP_ATLAS_METRICS_ADDR"},
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := config.LoadEnvFiles(c.StringSlice("env-file")...); err != nil {
		return err
	}
	loader := &config.Loader{}
	if path := c.String("config"); path != "" {
		f, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		loader.File = f
	}

	m := metrics.New()
	reg := registry.NewRegistry()
	handler := tools.NewHandler(reg, loader,
		tools.WithMetrics(m),
		tools.WithLogger(logger),
		tools.WithUserAgent("mcp-atlas/"+Version),
	)
	srv := server.New(mcp.NewTransport(os.Stdin, os.Stdout), reg, handler,
		server.WithMetrics(m),
		server.WithLogger(logger),
		server.WithVersion(Version),
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Run(ctx)
	})
	if addr := c.String("metrics-addr"); addr != "" {
		g.Go(func() error {
			logger.Info("metrics listening", "addr", addr)
			return m.Serve(ctx, addr)
		})
	}
	return g.Wait()
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return l, nil
}
