package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/model"
)

// Run executes the main application logic: run the pipeline document if one
// was given, then serve the HTTP surface if a listen address was given.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.PipelinePath != "" {
		if err := a.runDocument(ctx, a.config.PipelinePath); err != nil {
			return err
		}
	}

	if a.config.ListenAddr != "" {
		return a.serve(ctx)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// runDocument loads, executes, and prints one pipeline document.
func (a *App) runDocument(ctx context.Context, path string) error {
	pipeline, err := LoadPipeline(path)
	if err != nil {
		return err
	}
	a.logger.Info("🧬 Pipeline loaded", "pipeline", pipeline.ID, "name", pipeline.Name, "nodes", len(pipeline.Nodes))

	session, err := a.runner.Run(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	out := struct {
		Session  *model.ExecutionSession `json:"session"`
		Pipeline *model.Pipeline         `json:"pipeline"`
	}{Session: session, Pipeline: pipeline}

	encoder := json.NewEncoder(a.outW)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// LoadPipeline reads a pipeline document from a JSON file. Nodes with no
// status come up idle.
func LoadPipeline(path string) (*model.Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline document: %w", err)
	}

	var pipeline model.Pipeline
	if err := json.Unmarshal(raw, &pipeline); err != nil {
		return nil, fmt.Errorf("parse pipeline document %s: %w", path, err)
	}

	if pipeline.Status == "" {
		pipeline.Status = model.PipelineDraft
	}
	for _, n := range pipeline.Nodes {
		if n.Status == "" {
			n.Status = model.NodeIdle
		}
	}
	return &pipeline, nil
}
