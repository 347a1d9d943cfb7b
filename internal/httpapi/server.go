// Package httpapi exposes the scheduler and gateway over plain net/http with
// JSON request and response bodies.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floguru/gurucore/internal/gateway"
	"github.com/floguru/gurucore/internal/logger"
	"github.com/floguru/gurucore/internal/scheduler"
)

// Scheduler is the scheduling surface the API needs.
type Scheduler interface {
	Jobs() []scheduler.JobInfo
	ScheduleAutomation(id string, trigger scheduler.Trigger) error
	UnscheduleAutomation(id string)
}

// MessageHandler runs an inbound message through the gateway.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg gateway.InboundMessage) (string, error)
}

// Config holds HTTP server settings.
type Config struct {
	ListenAddr     string
	MetricsEnabled bool
}

// Server is the HTTP surface of the daemon.
type Server struct {
	cfg       Config
	log       *logger.Logger
	scheduler Scheduler
	messages  MessageHandler
	srv       *http.Server
}

// New creates a server. The message handler may be nil; the gateway route
// then answers 503.
func New(cfg Config, log *logger.Logger, sched Scheduler, messages MessageHandler) *Server {
	return &Server{cfg: cfg, log: log, scheduler: sched, messages: messages}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /scheduler/jobs", s.handleJobs)
	mux.HandleFunc("POST /scheduler/pause/{id}", s.handlePause)
	mux.HandleFunc("POST /scheduler/reschedule/{id}", s.handleReschedule)
	mux.HandleFunc("POST /gateway/message", s.handleMessage)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// Start runs the server until Shutdown or a listen error.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("http server listening", logger.Field{Key: "addr", Value: s.cfg.ListenAddr})
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.scheduler.Jobs()
	if jobs == nil {
		jobs = []scheduler.JobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.scheduler.UnscheduleAutomation(id)
	// Pausing an unknown id is still a success: there is nothing to stop.
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type rescheduleRequest struct {
	Trigger *scheduler.Trigger `json:"trigger"`
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Trigger == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing trigger payload"})
		return
	}

	if err := s.scheduler.ScheduleAutomation(id, *req.Trigger); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "gateway not available"})
		return
	}

	var msg gateway.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid message payload"})
		return
	}
	if msg.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message text is required"})
		return
	}
	if msg.Channel == "" {
		msg.Channel = "http"
	}

	reply, err := s.messages.HandleMessage(r.Context(), msg)
	if err != nil {
		s.log.Error("message handling failed", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reply": reply})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
