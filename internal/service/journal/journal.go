// Package journal buffers drive-loop events in memory and periodically
// flushes them to the event repository.
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"
	"lanepilot/internal/model"
	"lanepilot/internal/repository"
	"lanepilot/internal/timeutil"

	"github.com/google/uuid"
)

// Service owns the journal of one run.
type Service struct {
	runID    string
	limit    int
	interval time.Duration

	events repository.EventRepository
	runs   repository.RunRepository
	logger *logger.Logger
	clock  timeutil.Clock

	mu      sync.Mutex
	buffer  []model.Event
	dropped int

	// serializes flushes; held across the repository write, unlike mu
	flushMu sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a journal with a fresh run ID. runs may be nil.
func NewService(cfg *config.Config, logger *logger.Logger, events repository.EventRepository, runs repository.RunRepository, clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Service{
		runID:    uuid.NewString(),
		limit:    cfg.JournalBufferLimit,
		interval: cfg.JournalFlushInterval,
		events:   events,
		runs:     runs,
		logger:   logger,
		clock:    clock,
		buffer:   make([]model.Event, 0, cfg.JournalBufferLimit),
		stopChan: make(chan struct{}),
	}
}

// RunID identifies the current run.
func (s *Service) RunID() string {
	return s.runID
}

// Begin stores the run record and the run_started event.
func (s *Service) Begin(mode string) error {
	if s.runs != nil {
		run := &model.Run{ID: s.runID, Mode: mode, StartedAt: s.clock.Now()}
		if err := s.runs.Insert(run); err != nil {
			return fmt.Errorf("failed to record run start: %w", err)
		}
	}
	s.Record(model.Event{Kind: model.EventRunStarted, Behavior: "Normal", Detail: "mode " + mode})
	s.logger.Info("📒 Journal started for run %s", s.runID)
	return nil
}

// Record appends an event to the buffer, stamping run ID and time. Events
// beyond the buffer limit are dropped until the next flush.
func (s *Service) Record(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) >= s.limit {
		if s.dropped == 0 {
			s.logger.Warning("Journal buffer full (%d events), dropping until next flush", s.limit)
		}
		s.dropped++
		return
	}

	ev.RunID = s.runID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	s.buffer = append(s.buffer, ev)
}

// Pending returns the number of buffered events.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Flush writes buffered events to the repository. The buffer is swapped out
// first so Record never waits on the write. On failure the batch is put back
// ahead of anything recorded meanwhile, within the buffer limit.
func (s *Service) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.buffer
	dropped := s.dropped
	s.buffer = make([]model.Event, 0, s.limit)
	s.dropped = 0
	s.mu.Unlock()

	if err := s.events.InsertBatch(batch); err != nil {
		s.requeue(batch, dropped)
		return fmt.Errorf("failed to flush journal: %w", err)
	}

	if dropped > 0 {
		s.logger.Warning("Journal dropped %d events since last flush", dropped)
	}
	s.logger.Info("Flushed %d journal events", len(batch))
	return nil
}

// requeue restores a failed batch in front of the current buffer. Events past
// the limit are dropped from the newest end, as Record does.
func (s *Service) requeue(batch []model.Event, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := append(batch, s.buffer...)
	if len(merged) > s.limit {
		dropped += len(merged) - s.limit
		merged = merged[:s.limit]
	}
	s.buffer = merged
	s.dropped += dropped
}

// Start launches the periodic flush loop.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Error("Error flushing journal: %v", err)
			}
		}
	}
}

// Stop ends the flush loop, records run_finished, performs a final flush and
// closes the run record.
func (s *Service) Stop(ticks int64) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()

		s.Record(model.Event{Kind: model.EventRunFinished, Tick: ticks})
		if err = s.Flush(); err != nil {
			return
		}
		if s.runs != nil {
			if ferr := s.runs.Finish(s.runID, s.clock.Now(), ticks); ferr != nil {
				err = fmt.Errorf("failed to record run end: %w", ferr)
				return
			}
		}
		s.logger.Info("📒 Journal closed for run %s after %d ticks", s.runID, ticks)
	})
	return err
}
