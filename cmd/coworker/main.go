// Command coworker runs the multi-agent group chat orchestration server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/coworkai/coworker/pkg/agent"
	"github.com/coworkai/coworker/pkg/config"
	"github.com/coworkai/coworker/pkg/knowledge"
	"github.com/coworkai/coworker/pkg/llms"
	"github.com/coworkai/coworker/pkg/logger"
	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/server"
	"github.com/coworkai/coworker/pkg/store"
	"github.com/coworkai/coworker/pkg/tools"
)

var version = "dev"

type cli struct {
	Serve   serveCmd   `cmd:"" default:"1" help:"Start the orchestration server."`
	Version versionCmd `cmd:"" help:"Print the version."`
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Println(version)
	return nil
}

type serveCmd struct {
	Addr      string `help:"HTTP listen address." env:"COWORKER_ADDR"`
	DataRoot  string `help:"Directory holding workspaces." env:"COWORKER_DATA_ROOT"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." env:"COWORKER_LOG_LEVEL"`
	LogFormat string `help:"Log format (simple, verbose)." env:"COWORKER_LOG_FORMAT"`
}

func (c *serveCmd) Run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.DataRoot != "" {
		cfg.DataRoot = c.DataRoot
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.LogFormat = c.LogFormat
	}

	logger.Init(logger.ParseLevel(cfg.LogLevel), os.Stderr, cfg.LogFormat)

	if err := observability.Init(); err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	providersPath := cfg.ProvidersFile
	if !filepath.IsAbs(providersPath) {
		providersPath = filepath.Join(cfg.DataRoot, providersPath)
	}
	providers, err := config.NewProviderStore(providersPath)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	defer providers.Close()

	registry := tools.NewToolRegistry()
	if err := registry.AddSource(tools.NewLocalSource()); err != nil {
		return fmt.Errorf("register local tools: %w", err)
	}

	ks, err := knowledge.NewStore(cfg.DataRoot, providers)
	if err != nil {
		return fmt.Errorf("open knowledge store: %w", err)
	}

	srv := server.New(server.Options{
		Config:    cfg,
		Groups:    store.NewGroupStore(cfg.DataRoot),
		Agents:    agent.NewStore(cfg.DataRoot),
		Gateway:   llms.NewGateway(providers),
		Registry:  registry,
		Knowledge: ks,
		Personas:  agent.LoadPersonas(filepath.Join(cfg.DataRoot, "output_modes.json")),
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
		// No write timeout: SSE responses stay open for the whole turn.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "version", version)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func main() {
	// A local .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	var c cli
	ctx := kong.Parse(&c,
		kong.Name("coworker"),
		kong.Description("Multi-agent group chat orchestration server."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
