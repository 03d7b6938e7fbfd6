package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/gate"
	"github.com/MEKXH/shipgate/internal/version"
	"github.com/google/uuid"
)

// CandidateRunner starts a gate run for a submitted candidate. Submissions
// are asynchronous: the run outlives the HTTP request that started it.
type CandidateRunner interface {
	Submit(ctx context.Context, candidateID, url, lineage string) error
}

// ApprovalLister exposes approval requests for listing. *gate.Service
// satisfies it.
type ApprovalLister interface {
	List(query gate.Query) ([]gate.Request, error)
}

type Server struct {
	cfg        config.GatewayConfig
	runner     CandidateRunner
	approvals  ApprovalLister
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, runner CandidateRunner, approvals ApprovalLister) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18791
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:       cfg,
		runner:    runner,
		approvals: approvals,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.runner, s.approvals)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func NewHandler(token string, runner CandidateRunner, approvals ApprovalLister) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/candidates", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			URL     string `json:"url"`
			Lineage string `json:"lineage"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		url := strings.TrimSpace(req.URL)
		if url == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "url is required")
			return
		}
		lineage := strings.TrimSpace(req.Lineage)
		if lineage == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "lineage is required")
			return
		}

		if runner == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "candidate runner is not configured")
			return
		}

		candidateID := uuid.NewString()
		go func() {
			// Detached from the request context: the gate may wait on a
			// human far longer than any HTTP client will.
			if err := runner.Submit(context.Background(), candidateID, url, lineage); err != nil {
				slog.Error("gate run failed",
					"request_id", requestID,
					"candidate_id", candidateID,
					"error", err,
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"candidate_id": candidateID,
			"lineage":      lineage,
			"request_id":   requestID,
		})
	})
	mux.HandleFunc("/approvals", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if approvals == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval store is not configured")
			return
		}

		query := gate.Query{
			CandidateID: strings.TrimSpace(r.URL.Query().Get("candidate_id")),
			Lineage:     strings.TrimSpace(r.URL.Query().Get("lineage")),
			State:       gate.State(strings.TrimSpace(r.URL.Query().Get("state"))),
		}
		requests, err := approvals.List(query)
		if err != nil {
			slog.Error("approval list failed", "request_id", requestID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list approvals")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"approvals":  requests,
			"request_id": requestID,
		})
	})
	return mux
}

func isAuthorized(r *http.Request, expected string) bool {
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
