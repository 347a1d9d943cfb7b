// Package scheduler owns the registry of compiled cron jobs that drive
// automations. It uses robfig/cron/v3 for timer scheduling, one cron instance
// per job so each automation runs in its own timezone. Scheduling the same
// automation id again replaces the previous job atomically; unscheduling an
// unknown id is a no-op success.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/floguru/gurucore/internal/logger"
	"github.com/floguru/gurucore/internal/notify"
)

// ExecuteFunc runs one automation. The scheduler calls it on every fire with
// the automation id the job was registered under.
type ExecuteFunc func(ctx context.Context, automationID string) error

// JobInfo is the externally visible state of one registered job.
type JobInfo struct {
	ID      string `json:"id"`
	NextRun string `json:"nextRun"`
}

type job struct {
	cron  *cron.Cron
	sched cron.Schedule
	loc   *time.Location
}

// Scheduler manages scheduled automations.
type Scheduler struct {
	log      *logger.Logger
	execute  ExecuteFunc
	notifier notify.Notifier

	defaultTimezone string
	parser          cron.Parser

	mu    sync.Mutex
	jobs  map[string]*job
	order []string // registry insertion order, position survives replace
	ctx   context.Context
}

// New creates a scheduler. Fires invoke execute and report to notifier.
func New(log *logger.Logger, defaultTimezone string, execute ExecuteFunc, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		log:             log,
		execute:         execute,
		notifier:        notifier,
		defaultTimezone: defaultTimezone,
		parser:          cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		jobs:            make(map[string]*job),
	}
}

// Start sets the context fires run under. Jobs may be scheduled before Start;
// fires before Start run under context.Background().
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.log.Info("scheduler started", logger.Field{Key: "jobs", Value: len(s.jobs)})
}

// Stop stops every job's timer. Fires already in flight run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		j.cron.Stop()
	}
	s.log.Info("scheduler stopped")
}

// ScheduleAutomation compiles the trigger and registers a live job for the
// automation id. If a job already exists under the id, its timer is stopped
// and discarded before the new one starts; there are never two live timers
// for the same id. The job keeps its original position in the registry order.
func (s *Scheduler) ScheduleAutomation(id string, trigger Trigger) error {
	compiled, err := BuildCronExpression(trigger, s.defaultTimezone)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(compiled.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", compiled.Timezone, err)
	}

	sched, err := s.parser.Parse(compiled.Expression)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", compiled.Expression, err)
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))
	if _, err := c.AddFunc(compiled.Expression, func() { s.fire(id) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", compiled.Expression, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.jobs[id]; exists {
		// Stop the old timer before the replacement starts so the two can
		// never overlap-fire.
		old.cron.Stop()
	} else {
		s.order = append(s.order, id)
	}

	c.Start()
	s.jobs[id] = &job{cron: c, sched: sched, loc: loc}
	jobsRegistered.Set(float64(len(s.jobs)))

	s.log.Info("automation scheduled",
		logger.Field{Key: "automation_id", Value: id},
		logger.Field{Key: "expression", Value: compiled.Expression},
		logger.Field{Key: "timezone", Value: compiled.Timezone})
	return nil
}

// UnscheduleAutomation stops and removes the job for the id. Unknown ids are
// a success, not an error: callers must be able to pause blindly.
func (s *Scheduler) UnscheduleAutomation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[id]
	if !exists {
		return
	}

	j.cron.Stop()
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	jobsRegistered.Set(float64(len(s.jobs)))

	s.log.Info("automation unscheduled", logger.Field{Key: "automation_id", Value: id})
}

// Jobs returns one record per registered job in registry insertion order,
// each with its next fire instant as an RFC 3339 string.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		next := j.sched.Next(time.Now().In(j.loc))
		infos = append(infos, JobInfo{ID: id, NextRun: next.Format(time.RFC3339)})
	}
	return infos
}

// Count returns the number of registered jobs (distinct automation ids).
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// fire runs one scheduled execution. robfig/cron already runs each fire in
// its own goroutine, so a slow automation only delays itself.
func (s *Scheduler) fire(id string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("automation fire panic recovered", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "automation_id", Value: id})
			firesTotal.WithLabelValues("panic").Inc()
		}
	}()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.log.Info("automation fired", logger.Field{Key: "automation_id", Value: id})
	s.notifier.AutomationStarted(id)

	if err := s.execute(ctx, id); err != nil {
		s.notifier.AutomationFailed(id, err)
		firesTotal.WithLabelValues("error").Inc()
		return
	}

	s.notifier.AutomationCompleted(id)
	firesTotal.WithLabelValues("ok").Inc()
}
