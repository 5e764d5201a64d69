package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RefreshService re-warms the dashboard caches on a cron schedule so reads
// hit warm data instead of paying the upstream round trip.
type RefreshService struct {
	scheduler gocron.Scheduler
	api       *APIClient
	metrics   *Metrics
	logger    *logrus.Logger
	spec      string
}

// NewRefreshService creates a refresh service for the given cron spec
// (standard 5-field expression). The spec is validated up front so a bad
// REFRESH_CRON fails at startup, not at first tick.
func NewRefreshService(api *APIClient, metrics *Metrics, spec string) (*RefreshService, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh cron %q: %w", spec, err)
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &RefreshService{
		scheduler: scheduler,
		api:       api,
		metrics:   metrics,
		logger:    logger,
		spec:      spec,
	}, nil
}

// Start registers the refresh job and starts the scheduler.
func (s *RefreshService) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(s.spec, false),
		gocron.NewTask(s.runOnce),
	)
	if err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}

	s.scheduler.Start()
	s.logger.WithField("cron", s.spec).Info("refresh scheduler started")
	return nil
}

// Stop shuts the scheduler down.
func (s *RefreshService) Stop() error {
	s.logger.Info("refresh scheduler stopping")
	return s.scheduler.Shutdown()
}

// runOnce re-warms every dashboard endpoint. Individual failures are logged
// and do not stop the run; the fetch layer already degrades each endpoint to
// stale or fallback data on its own.
func (s *RefreshService) runOnce() {
	runID := uuid.New().String()
	start := time.Now()
	entry := s.logger.WithField("run_id", runID)
	entry.Info("refresh run started")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failures := 0
	warm := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			failures++
			entry.WithField("endpoint", name).WithError(err).Warn("refresh fetch failed")
		}
	}

	warm("chains", func(ctx context.Context) error {
		_, _, err := s.api.Chains(ctx)
		return err
	})
	warm("network-tps", func(ctx context.Context) error {
		_, _, err := s.api.NetworkTPS(ctx)
		return err
	})
	warm("health", func(ctx context.Context) error {
		_, _, err := s.api.Health(ctx)
		return err
	})
	warm("message-stats", func(ctx context.Context) error {
		_, _, err := s.api.MessageStats(ctx)
		return err
	})
	warm("proposals", func(ctx context.Context) error {
		_, _, err := s.api.Proposals(ctx)
		return err
	})

	outcome := "ok"
	if failures > 0 {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordRefreshRun(outcome)
	}
	entry.WithField("failures", failures).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("refresh run finished")
}
