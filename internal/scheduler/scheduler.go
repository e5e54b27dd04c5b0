package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/forecast-viewer/internal/viewer"
)

// StatsSource reports session counters.
type StatsSource interface {
	Stats() viewer.Stats
}

// HistoryPruner drops expired navigation history.
type HistoryPruner interface {
	Prune(now time.Time) int
}

// Scheduler periodically prunes the navigation history and reports the
// viewer's counters.
type Scheduler struct {
	scheduler *gocron.Scheduler
	stats     StatsSource
	history   HistoryPruner
	interval  time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, stats StatsSource, history HistoryPruner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		stats:     stats,
		history:   history,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce performs one housekeeping pass.
func (s *Scheduler) RunOnce() {
	removed := s.history.Prune(time.Now().UTC())
	st := s.stats.Stats()
	log.Printf("scheduler: session %s: epochs=%d stale=%d snapshots=%d writes=%d history_pruned=%d",
		st.Session, st.Epochs, st.StaleResults, st.Snapshots, st.EffectWrites, removed)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
