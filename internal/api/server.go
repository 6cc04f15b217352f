// ABOUTME: Read-only HTTP API exposing dialogs and transcripts to operators
// ABOUTME: Health and metrics are public; /api routes require an operator JWT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/handoff-gateway/internal/auth"
	"github.com/2389/handoff-gateway/internal/dialog"
	"github.com/2389/handoff-gateway/internal/metrics"
	"github.com/2389/handoff-gateway/internal/store"
)

// DialogReader is the slice of the lifecycle manager the API needs.
type DialogReader interface {
	GetDialog(ctx context.Context, id string) (*store.Dialog, error)
	ListDialogs(ctx context.Context, status store.DialogStatus) ([]*store.Dialog, error)
}

// Config wires the API server.
type Config struct {
	Addr        string
	Dialogs     DialogReader
	Verifier    auth.TokenVerifier
	Staff       auth.StaffDirectory
	Metrics     *metrics.Metrics
	MetricsPath string // empty disables the metrics endpoint
}

// Server serves the operator API.
type Server struct {
	dialogs DialogReader
	logger  *slog.Logger
	http    *http.Server
}

// New builds the server and its routes.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		dialogs: cfg.Dialogs,
		logger:  logger.With("component", "api"),
	}

	requireOperator := auth.HTTPAuthMiddleware(cfg.Verifier, cfg.Staff, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, cfg.Metrics.Handler())
	}
	mux.Handle("GET /api/dialogs", requireOperator(http.HandlerFunc(s.handleListDialogs)))
	mux.Handle("GET /api/dialogs/{id}", requireOperator(http.HandlerFunc(s.handleGetDialog)))

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           cfg.Metrics.Instrument(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dialogSummary is the list view of a dialog, without its transcript.
type dialogSummary struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	UserName   string             `json:"user_name"`
	Username   string             `json:"username,omitempty"`
	OperatorID string             `json:"operator_id,omitempty"`
	Status     store.DialogStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	AcceptedAt *time.Time         `json:"accepted_at,omitempty"`
	ClosedAt   *time.Time         `json:"closed_at,omitempty"`
	Messages   int                `json:"messages"`
}

func summarize(d *store.Dialog) dialogSummary {
	return dialogSummary{
		ID:         d.ID,
		UserID:     d.UserID,
		UserName:   d.UserName,
		Username:   d.Username,
		OperatorID: d.OperatorID,
		Status:     d.Status,
		CreatedAt:  d.CreatedAt,
		AcceptedAt: d.AcceptedAt,
		ClosedAt:   d.ClosedAt,
		Messages:   len(d.Messages),
	}
}

// visible reports whether op may read d. Admins see everything; operators
// see unclaimed dialogs and their own.
func visible(op *auth.Operator, d *store.Dialog) bool {
	return op.Admin || d.Status == store.StatusPending || d.OperatorID == op.ID
}

// handleListDialogs handles GET /api/dialogs?status=pending|active|closed.
func (s *Server) handleListDialogs(w http.ResponseWriter, r *http.Request) {
	op := auth.FromContext(r.Context())

	var status store.DialogStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := store.ParseDialogStatus(raw)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	dialogs, err := s.dialogs.ListDialogs(r.Context(), status)
	if err != nil {
		s.logger.Error("listing dialogs", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to list dialogs")
		return
	}

	out := make([]dialogSummary, 0, len(dialogs))
	for _, d := range dialogs {
		if visible(op, d) {
			out = append(out, summarize(d))
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dialogs": out})
}

// handleGetDialog handles GET /api/dialogs/{id}, returning the full transcript.
func (s *Server) handleGetDialog(w http.ResponseWriter, r *http.Request) {
	op := auth.FromContext(r.Context())

	d, err := s.dialogs.GetDialog(r.Context(), r.PathValue("id"))
	if errors.Is(err, dialog.ErrDialogNotFound) || errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "dialog not found")
		return
	}
	if err != nil {
		s.logger.Error("loading dialog", "dialog_id", r.PathValue("id"), "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to load dialog")
		return
	}
	if !visible(op, d) {
		s.sendJSONError(w, http.StatusNotFound, "dialog not found")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response", "error", err)
	}
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
