// Package app assembles the engine: logger, node-definition registry,
// endpoint overrides, event hub, and the optional HTTP surface.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/engine"
	"github.com/vk/pipecanvas/internal/events"
	"github.com/vk/pipecanvas/internal/manifest"
	"github.com/vk/pipecanvas/internal/registry"
)

// endpointEnvPrefix names env variables that override api_call endpoints by
// node type, e.g. PIPECANVAS_ENDPOINT_RFDIFFUSION=https://gpu-1.internal/run.
const endpointEnvPrefix = "PIPECANVAS_ENDPOINT_"

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	runner   *engine.Runner
	hub      *events.Hub
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config) *App {
	// Endpoint overrides may live in a .env file; a missing default file is
	// not an error.
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			panic(fmt.Errorf("failed to load env file %s: %w", cfg.EnvFile, err))
		}
	} else {
		_ = godotenv.Load()
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.NewWithBuiltins()
	if cfg.DefinitionsPath != "" {
		// A broken manifest directory is a fatal startup error.
		if err := manifest.LoadDir(ctx, cfg.DefinitionsPath, reg); err != nil {
			panic(fmt.Errorf("failed to load node definitions: %w", err))
		}
	}
	logger.Debug("Node definitions registered.", "types", reg.Types())

	var hub *events.Hub
	var emitter events.Emitter
	if cfg.ListenAddr != "" {
		hub = events.NewHub(ctx)
		emitter = hub
	}

	runner := engine.New(reg, engine.Options{
		HaltOnError: cfg.HaltOnError,
		Emitter:     emitter,
		Endpoints:   endpointsFromEnv(),
	})

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		runner:   runner,
		hub:      hub,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Runner returns the application's engine runner. Primarily for testing.
func (a *App) Runner() *engine.Runner {
	return a.runner
}

// endpointsFromEnv collects node-type endpoint overrides from the process
// environment.
func endpointsFromEnv() map[string]string {
	endpoints := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, endpointEnvPrefix) || value == "" {
			continue
		}
		nodeType := strings.ToLower(strings.TrimPrefix(name, endpointEnvPrefix))
		endpoints[nodeType] = value
	}
	if len(endpoints) == 0 {
		return nil
	}
	return endpoints
}
