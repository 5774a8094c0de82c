// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs registered by feature modules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type job struct {
	source      string
	name        string
	description string
	schedule    string
	entryID     cron.EntryID
	fn          JobFunc
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"lastRun"`
	NextRun     time.Time `json:"nextRun"`
}

// ErrUnknownJob is returned by Trigger for jobs that are not registered.
var ErrUnknownJob = errors.New("job not registered")

// Scheduler wraps a cron runner with named jobs.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]*job // key: "source:name"
	started bool
}

// New creates a scheduler. Each run is bounded by timeout (0 = unbounded).
func New(logger *slog.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]*job),
	}
}

func jobKey(source, name string) string {
	return source + ":" + name
}

// ValidateSchedule checks a standard five-field cron expression or a descriptor such as @every 15m.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// Register adds a job. Registering the same source and name twice is an error.
func (s *Scheduler) Register(source, name, description, schedule string, fn JobFunc) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey(source, name)
	if _, exists := s.jobs[key]; exists {
		return fmt.Errorf("job %q already registered", key)
	}

	j := &job{source: source, name: name, description: description, schedule: schedule, fn: fn}
	id, err := s.cron.AddFunc(schedule, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("adding job %q: %w", key, err)
	}
	j.entryID = id
	s.jobs[key] = j

	s.logger.Debug("job registered", "source", source, "name", name, "schedule", schedule)
	return nil
}

// Trigger runs a registered job immediately in the caller's goroutine.
func (s *Scheduler) Trigger(source, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[jobKey(source, name)]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobKey(source, name))
	}
	return s.run(j)
}

func (s *Scheduler) run(j *job) error {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		s.logger.Error("scheduled job failed", "source", j.source, "name", j.name, "error", err)
		return err
	}
	s.logger.Debug("scheduled job finished", "source", j.source, "name", j.name, "duration", time.Since(start))
	return nil
}

// Jobs lists registered jobs ordered by source and name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		infos = append(infos, JobInfo{
			Source:      j.source,
			Name:        j.name,
			Description: j.description,
			Schedule:    j.schedule,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
		})
	}
	sort.Slice(infos, func(a, b int) bool {
		if infos[a].Source != infos[b].Source {
			return infos[a].Source < infos[b].Source
		}
		return infos[a].Name < infos[b].Name
	})
	return infos
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
