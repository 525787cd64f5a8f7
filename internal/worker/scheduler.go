package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/services"
)

// Snapshotter is the part of the snapshot service the scheduler drives
type Snapshotter interface {
	Snapshot(ctx context.Context, req services.SnapshotRequest) (*services.SnapshotResult, error)
	Cleanup(ctx context.Context, keepDays int) (*services.CleanupResult, error)
}

// Config controls what the scheduler runs and when. An empty schedule
// disables that job.
type Config struct {
	Context           string
	Namespace         string
	Schedule          string
	RetentionDays     int
	RetentionSchedule string
}

// Scheduler runs periodic snapshots and retention on cron schedules
type Scheduler struct {
	snapshots Snapshotter
	cfg       Config
	logger    *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a new scheduler
func NewScheduler(snapshots Snapshotter, cfg Config, log *logger.Logger) *Scheduler {
	return &Scheduler{
		snapshots: snapshots,
		cfg:       cfg,
		logger:    log,
	}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
}

// Start registers the jobs and starts the cron loop. Jobs run with a context
// derived from ctx, cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	c := newCron()
	jobCtx, cancel := context.WithCancel(ctx)

	if s.cfg.Schedule != "" {
		if _, err := c.AddFunc(s.cfg.Schedule, func() { s.RunSnapshot(jobCtx) }); err != nil {
			cancel()
			return fmt.Errorf("invalid snapshot schedule %q: %w", s.cfg.Schedule, err)
		}
	}
	if s.cfg.RetentionSchedule != "" {
		if _, err := c.AddFunc(s.cfg.RetentionSchedule, func() { s.RunRetention(jobCtx) }); err != nil {
			cancel()
			return fmt.Errorf("invalid retention schedule %q: %w", s.cfg.RetentionSchedule, err)
		}
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true

	s.logger.WithFields(map[string]interface{}{
		"schedule":           s.cfg.Schedule,
		"retention_schedule": s.cfg.RetentionSchedule,
		"jobs":               len(c.Entries()),
	}).Info("Scheduler started")

	return nil
}

// Stop stops the cron loop and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunSnapshot captures one snapshot of the configured scope. Failures are
// logged; the next tick tries again.
func (s *Scheduler) RunSnapshot(ctx context.Context) {
	log := s.logger.WithFields(map[string]interface{}{
		"run_id":  uuid.New().String(),
		"job":     "snapshot",
		"context": s.cfg.Context,
	})
	log.Info("Scheduled snapshot started")

	req := services.SnapshotRequest{Context: s.cfg.Context}
	if s.cfg.Namespace != "" {
		ns := s.cfg.Namespace
		req.Namespace = &ns
	}

	result, err := s.snapshots.Snapshot(ctx, req)
	if err != nil {
		log.ErrorWithErr(err, "Scheduled snapshot failed")
		return
	}

	log.WithFields(map[string]interface{}{
		"scan_id":   result.ScanID,
		"resources": result.TotalResources,
		"changes":   len(result.Changes),
	}).Info("Scheduled snapshot completed")
}

// RunRetention deletes scans past the retention window
func (s *Scheduler) RunRetention(ctx context.Context) {
	log := s.logger.WithFields(map[string]interface{}{
		"run_id":    uuid.New().String(),
		"job":       "retention",
		"keep_days": s.cfg.RetentionDays,
	})

	result, err := s.snapshots.Cleanup(ctx, s.cfg.RetentionDays)
	if err != nil {
		log.ErrorWithErr(err, "Scheduled retention failed")
		return
	}

	log.WithFields(map[string]interface{}{
		"deleted": result.Deleted,
	}).Info("Scheduled retention completed")
}
