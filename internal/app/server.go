package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/pipecanvas/internal/model"
)

// serve runs the HTTP/WS surface until the context is canceled.
func (a *App) serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.HandleFunc("GET /ws", a.hub.ServeWS)
	mux.HandleFunc("POST /api/run", a.runHandler)
	mux.HandleFunc("GET /api/sessions", a.sessionsHandler)
	mux.HandleFunc("POST /api/stop", a.stopHandler)

	server := &http.Server{
		Addr:    a.config.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🩺 Engine server starting", "address", fmt.Sprintf("http://localhost%s/health", a.config.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown failed", "error", err)
			return err
		}
		a.logger.Debug("Server shut down gracefully.")
		return nil
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// runHandler executes a pipeline document posted by the canvas and returns
// the session plus the updated document.
func (a *App) runHandler(w http.ResponseWriter, r *http.Request) {
	var pipeline model.Pipeline
	if err := json.NewDecoder(r.Body).Decode(&pipeline); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid pipeline document: %w", err))
		return
	}
	for _, n := range pipeline.Nodes {
		if n.Status == "" {
			n.Status = model.NodeIdle
		}
	}

	session, err := a.runner.Run(r.Context(), &pipeline)
	if err != nil {
		// Pre-run failures only: invalid document or a cycle.
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Session  *model.ExecutionSession `json:"session"`
		Pipeline *model.Pipeline         `json:"pipeline"`
	}{session, &pipeline})
}

func (a *App) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.runner.History().Sessions())
}

func (a *App) stopHandler(w http.ResponseWriter, r *http.Request) {
	a.runner.Stop()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
