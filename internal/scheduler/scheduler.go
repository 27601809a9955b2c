// Package scheduler provides cron-driven recurring jobs and the Guard that
// owns the hourly and weekly optimization runs.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a recurring job handle. Start and Stop may be called any number of
// times; both are idempotent. Stopping only affects future firings, not a run
// already in progress.
type Job interface {
	Start()
	Stop()
	Running() bool
}

// Scheduler creates Jobs from a cron expression. Implemented by CronScheduler
// in production and by fakes in tests.
type Scheduler interface {
	Schedule(spec string, callback func()) (Job, error)
}

// DefaultTimezone is the timezone the cron expressions are evaluated in.
const DefaultTimezone = "Europe/Amsterdam"

var _ Scheduler = &CronScheduler{}

// CronScheduler creates cron-backed jobs in a fixed timezone.
type CronScheduler struct {
	location *time.Location
}

// NewCronScheduler returns a CronScheduler evaluating expressions in tz.
func NewCronScheduler(tz string) (*CronScheduler, error) {
	location, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &CronScheduler{location: location}, nil
}

// Schedule validates the cron expression and returns a stopped Job for it.
func (s *CronScheduler) Schedule(spec string, callback func()) (Job, error) {
	// one cron runner per job, so jobs start and stop independently
	runner := cron.New(cron.WithLocation(s.location))
	if _, err := runner.AddFunc(spec, callback); err != nil {
		return nil, err
	}
	return &cronJob{runner: runner}, nil
}

type cronJob struct {
	runner  *cron.Cron
	lock    sync.Mutex
	running bool
}

func (j *cronJob) Start() {
	j.lock.Lock()
	defer j.lock.Unlock()
	if !j.running {
		j.runner.Start()
		j.running = true
	}
}

func (j *cronJob) Stop() {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.running {
		j.runner.Stop()
		j.running = false
	}
}

func (j *cronJob) Running() bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.running
}
