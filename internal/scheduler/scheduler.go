// Package scheduler provides cron-based scheduling for CarePing.
//
// It fires the daily dose and measurement-check jobs at their configured
// local wall-clock times.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler. Jobs run in the given
// location so HH:MM slots follow the subjects' local wall clock.
func NewScheduler(loc *time.Location) *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// AddDailyJob schedules a task to run every day at the given hour and minute.
func (s *Scheduler) AddDailyJob(hour, minute int, task func()) error {
	return s.AddJob(fmt.Sprintf("%d %d * * *", minute, hour), task)
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
