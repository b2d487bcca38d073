// Package api provides HTTP handlers and the main API server logic for the
// commitAI autopilot.
//
// It exposes RESTful endpoints for running the autopilot, planning multi-goal
// days, recording feedback, and managing the Google Calendar integration.
// The API composes the store, policy, loop, scheduler, calendar, preference
// and job modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/calendar"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/genai"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/jobs"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/loop"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/prefs"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/scheduler"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8000"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr     string
	Timezone string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithTimezone sets the IANA timezone used for scheduling.
func WithTimezone(tz string) Option {
	return func(o *Opts) {
		o.Timezone = tz
	}
}

// Server wires the autopilot modules behind the HTTP surface.
type Server struct {
	st    store.Store
	gen   loop.Generator
	loop  *loop.Loop
	sched *scheduler.Scheduler
	cal   *calendar.Service
	prefs *prefs.Service
	addr  string
}

// NewServer composes a server from already-constructed modules. Tests use
// this directly with fakes; production wiring goes through Run.
func NewServer(st store.Store, gen loop.Generator, cal *calendar.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, Timezone: calendar.DefaultTimezone}
	for _, opt := range opts {
		opt(&cfg)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("Server.NewServer: invalid timezone, falling back to UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}
	return &Server{
		st:    st,
		gen:   gen,
		loop:  loop.New(gen),
		sched: scheduler.New(scheduler.WithLocation(loc)),
		cal:   cal,
		prefs: prefs.NewService(st),
		addr:  cfg.Addr,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler builds the HTTP mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/run_autopilot", s.runAutopilotHandler)
	mux.HandleFunc("/api/plan_day", s.planDayHandler)
	mux.HandleFunc("/api/feedback", s.feedbackHandler)
	mux.HandleFunc("/api/runs/recent", s.recentRunsHandler)
	mux.HandleFunc("/api/integrations/google/status", s.googleStatusHandler)
	mux.HandleFunc("/api/integrations/google/start", s.googleStartHandler)
	mux.HandleFunc("/api/integrations/google/callback", s.googleCallbackHandler)
	mux.HandleFunc("/api/integrations/google/test_event", s.googleTestEventHandler)
	return mux
}

// Run builds every module from its option slice and serves HTTP until the
// listener fails. The job scheduler runs alongside the server.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, calOpts []calendar.Option, apiOpts []Option) error {
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	st, err := store.NewFromDSN(storeCfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	gen, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize genai client: %w", err)
	}

	cal := calendar.NewService(st, calOpts...)

	srv := NewServer(st, gen, cal, apiOpts...)

	runner := jobs.NewRunner(st, srv.prefs)
	if err := runner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}
	defer runner.Stop()

	slog.Info("Server.Run: commitAI API listening", "addr", srv.addr, "model", gen.Model())
	if err := http.ListenAndServe(srv.addr, srv.Handler()); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}
