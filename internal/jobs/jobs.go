// Package jobs runs the background maintenance schedule, currently the
// nightly preference refresh for users with recent feedback.
package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/prefs"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
)

// DefaultRefreshSpec fires the preference refresh at 03:30 every day.
const DefaultRefreshSpec = "30 3 * * *"

// DefaultFeedbackLookback selects which user/goal pairs get refreshed.
const DefaultFeedbackLookback = 48 * time.Hour

// Opts holds configuration options for the job runner.
type Opts struct {
	RefreshSpec      string
	FeedbackLookback time.Duration
}

// Option defines a configuration option for the job runner.
type Option func(*Opts)

// WithRefreshSpec overrides the cron spec for the preference refresh.
func WithRefreshSpec(spec string) Option {
	return func(o *Opts) {
		o.RefreshSpec = spec
	}
}

// WithFeedbackLookback overrides how far back feedback is considered when
// choosing which preferences to refresh.
func WithFeedbackLookback(d time.Duration) Option {
	return func(o *Opts) {
		o.FeedbackLookback = d
	}
}

// Runner owns the cron scheduler and the jobs registered on it.
type Runner struct {
	cron     *cron.Cron
	st       store.Store
	prefs    *prefs.Service
	spec     string
	lookback time.Duration
}

// NewRunner builds a job runner over the given store and preference service.
func NewRunner(st store.Store, ps *prefs.Service, opts ...Option) *Runner {
	cfg := Opts{
		RefreshSpec:      DefaultRefreshSpec,
		FeedbackLookback: DefaultFeedbackLookback,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Runner{
		cron:     c,
		st:       st,
		prefs:    ps,
		spec:     cfg.RefreshSpec,
		lookback: cfg.FeedbackLookback,
	}
}

// Start registers the jobs and starts the scheduler in its own goroutine.
func (r *Runner) Start() error {
	_, err := r.cron.AddFunc(r.spec, r.RefreshPreferences)
	if err != nil {
		return fmt.Errorf("failed to register preference refresh: %w", err)
	}
	r.cron.Start()
	slog.Info("Jobs.Start: scheduler started", "refreshSpec", r.spec)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Info("Jobs.Stop: scheduler stopped")
}

// RefreshPreferences recomputes learned preferences for every user/goal pair
// with feedback inside the lookback window. Failures are logged per pair so
// one bad row does not stop the sweep.
func (r *Runner) RefreshPreferences() {
	since := time.Now().UTC().Add(-r.lookback)
	pairs, err := r.st.ListUserGoalsWithFeedbackSince(since)
	if err != nil {
		slog.Error("Jobs.RefreshPreferences: failed to list user goals", "error", err)
		return
	}
	refreshed := 0
	for _, pair := range pairs {
		if _, err := r.prefs.Upsert(pair.UserID, pair.GoalID); err != nil {
			slog.Warn("Jobs.RefreshPreferences: refresh failed",
				"userID", pair.UserID, "goalID", pair.GoalID, "error", err)
			continue
		}
		refreshed++
	}
	slog.Info("Jobs.RefreshPreferences: sweep complete", "pairs", len(pairs), "refreshed", refreshed)
}
