// Package scheduler runs periodic jobs inside the API process. Deployments that
// trigger jobs from an external cron leave it disabled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a registered periodic job
type Task struct {
	Name      string
	Interval  time.Duration
	Handler   func(ctx context.Context) error
	LastRun   time.Time
	NextRun   time.Time
	RunCount  int64
	LastError error
}

// TaskInfo is the monitoring view of a task
type TaskInfo struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	LastError *string   `json:"last_error,omitempty"`
}

// Scheduler checks registered tasks on every tick and runs the due ones in order
type Scheduler struct {
	tasks      []*Task
	mu         sync.RWMutex
	logger     zerolog.Logger
	resolution time.Duration
	timeout    time.Duration
	stop       chan struct{}
	wg         sync.WaitGroup
}

// New creates a Scheduler that wakes up every resolution and bounds each run by timeout
func New(logger zerolog.Logger, resolution, timeout time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = 30 * time.Second
	}
	return &Scheduler{
		logger:     logger.With().Str("component", "scheduler").Logger(),
		resolution: resolution,
		timeout:    timeout,
		stop:       make(chan struct{}),
	}
}

// Register adds a task whose first run is one interval from now
func (s *Scheduler) Register(name string, interval time.Duration, handler func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Handler:  handler,
		NextRun:  time.Now().Add(interval),
	})
	s.logger.Info().Str("task", name).Dur("interval", interval).Msg("scheduled task registered")
}

// Start runs the tick loop in the background until Stop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.tick(now)
			}
		}
	}()
	s.logger.Info().Msg("scheduler started")
}

// Stop ends the tick loop and waits for a running task to finish
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tick(now time.Time) {
	s.mu.RLock()
	due := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !now.Before(t.NextRun) {
			due = append(due, t)
		}
	}
	s.mu.RUnlock()

	for _, task := range due {
		err := s.run(task)

		s.mu.Lock()
		task.LastError = err
		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
		task.RunCount++
		s.mu.Unlock()
	}
}

func (s *Scheduler) run(task *Task) error {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := task.Handler(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("task", task.Name).Msg("scheduled task failed")
		return err
	}
	s.logger.Info().Str("task", task.Name).Dur("elapsed", time.Since(start)).Msg("scheduled task finished")
	return nil
}

// GetTasks lists the registered tasks
func (s *Scheduler) GetTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:     t.Name,
			Interval: t.Interval.String(),
			LastRun:  t.LastRun,
			NextRun:  t.NextRun,
			RunCount: t.RunCount,
		}
		if t.LastError != nil {
			msg := t.LastError.Error()
			info.LastError = &msg
		}
		result = append(result, info)
	}
	return result
}
