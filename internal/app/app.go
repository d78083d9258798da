// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/agentgate/internal/api"
	"github.com/wingedpig/agentgate/internal/config"
	"github.com/wingedpig/agentgate/internal/session"
)

// App is the main application container: it owns the session.Manager and
// session.Gateway for the process's lifetime and wires them into the HTTP
// server.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	manager *session.Manager
	gateway *session.Gateway
	apiServer *api.Server

	serverErr chan error
	done      chan struct{}
	stopOnce  sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New creates a new App instance.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		serverErr:  make(chan error, 1),
		done:       make(chan struct{}),
	}

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	app.config = cfg

	return app, nil
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	newSessionConfig := func(sessionID string) session.Config {
		return session.Config{
			AgentCommand:           cfg.Session.AgentCommand,
			AgentArgs:              cfg.Session.AgentArgs,
			Rows:                   24,
			Cols:                   80,
			IdleSeconds:            cfg.Session.IdleSeconds,
			TranscriptReadyTimeout: time.Duration(cfg.Session.TranscriptReadyTimeoutSeconds) * time.Second,
			FocusNudge:             cfg.Session.IsFocusNudgeEnabled(),
		}
	}

	app.manager = session.NewManager(newSessionConfig)
	app.gateway = session.NewGateway(app.manager)

	app.apiServer = api.NewServer(
		api.ServerConfig{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		},
		api.Dependencies{
			Gateway: app.gateway,
		},
	)

	return nil
}

// Start starts all components. A listen failure (e.g. the bind address is
// already in use) surfaces on the channel Run selects on, so the process
// exits nonzero instead of hanging on the signal wait.
func (app *App) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting API server on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.serverErr <- err
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	case err := <-app.serverErr:
		log.Printf("API server error: %v", err)
		_ = app.Shutdown(context.Background())
		return fmt.Errorf("api server: %w", err)
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components. Sessions are not
// force-killed: each child process is left to exit on its own terminal
// signal handling once the pty master closes.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
