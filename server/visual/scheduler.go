package visual

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Tick is the duration of a single server tick.
const Tick = 50 * time.Millisecond

// DefaultInterval is how often outlines are redrawn: every 23 ticks.
const DefaultInterval = 23 * Tick

// Scheduler runs the periodic redraws and delayed hides of visualisations.
type Scheduler struct {
	s gocron.Scheduler
}

// NewScheduler creates and starts a Scheduler.
func NewScheduler(log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := gocron.NewScheduler(gocron.WithLogger(log.With("subsystem", "visual")))
	if err != nil {
		return nil, fmt.Errorf("create visual scheduler: %w", err)
	}
	s.Start()
	return &Scheduler{s: s}, nil
}

// every runs f every d until the returned job is cancelled. A run that is
// still going when the next one is due delays the next one.
func (s *Scheduler) every(d time.Duration, f func()) (uuid.UUID, error) {
	job, err := s.s.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(f),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID(), nil
}

// after runs f once after d. The job removes itself once it ran, as gocron
// keeps one-time jobs listed after their only run.
func (s *Scheduler) after(d time.Duration, f func()) (uuid.UUID, error) {
	done := func(id uuid.UUID, _ string) { s.cancel(id) }
	job, err := s.s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(d))),
		gocron.NewTask(f),
		gocron.WithEventListeners(
			gocron.AfterJobRuns(done),
			gocron.AfterJobRunsWithError(func(id uuid.UUID, name string, _ error) { done(id, name) }),
		),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID(), nil
}

func (s *Scheduler) cancel(id uuid.UUID) {
	if id != uuid.Nil {
		_ = s.s.RemoveJob(id)
	}
}

// Jobs returns the amount of jobs currently scheduled.
func (s *Scheduler) Jobs() int {
	return len(s.s.Jobs())
}

// Close stops all jobs and waits for running ones to finish.
func (s *Scheduler) Close() error {
	return s.s.Shutdown()
}
