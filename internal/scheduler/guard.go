package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Cron expressions for the two recurring optimization jobs.
const (
	HourlySpec = "0 * * * *"
	WeeklySpec = "0 2 * * 0"
)

// Settings keys the Guard requires before it will start its jobs.
const (
	SettingAccount = "melcloud.username"
	SettingDevice  = "melcloud.device"
)

// Settings reads configured values. A key is present when the returned bool
// is true and the value is non-empty.
type Settings interface {
	Get(key string) (string, bool)
}

// Result is the outcome reported by an optimization run.
type Result struct {
	Success bool
	Message string
}

// Task is an injected optimization routine, invoked on every job tick.
type Task func(ctx context.Context) (Result, error)

// Guard owns the hourly and weekly optimization jobs. Both jobs are created
// stopped; EnsureRunningIfReady starts them once the required settings exist,
// and Stop halts them at shutdown. A task failure is logged and never affects
// the job's cadence.
type Guard struct {
	settings Settings
	logger   *slog.Logger
	hourly   *guardedJob
	weekly   *guardedJob
}

// NewGuard creates the two jobs on the given scheduler, in the stopped state.
func NewGuard(settings Settings, sched Scheduler, hourly, weekly Task, logger *slog.Logger) (*Guard, error) {
	g := Guard{
		settings: settings,
		logger:   logger,
	}

	var err error
	if g.hourly, err = newGuardedJob(sched, "hourly", HourlySpec, hourly, logger); err != nil {
		return nil, err
	}
	if g.weekly, err = newGuardedJob(sched, "weekly", WeeklySpec, weekly, logger); err != nil {
		return nil, err
	}
	return &g, nil
}

// EnsureRunningIfReady starts any stopped job, provided both the account and
// the device settings are present. Without them it is a no-op, not an error.
// Calling it repeatedly is idempotent.
func (g *Guard) EnsureRunningIfReady() {
	if !g.ready() {
		g.logger.Debug("required settings missing, jobs remain stopped")
		return
	}
	g.hourly.start()
	g.weekly.start()
}

// Stop halts both jobs. Only called at shutdown; an in-flight tick is allowed
// to finish.
func (g *Guard) Stop() {
	g.hourly.stop()
	g.weekly.stop()
}

// Running reports the state of the hourly and weekly jobs.
func (g *Guard) Running() (hourly, weekly bool) {
	return g.hourly.job.Running(), g.weekly.job.Running()
}

func (g *Guard) ready() bool {
	for _, key := range []string{SettingAccount, SettingDevice} {
		if value, ok := g.settings.Get(key); !ok || value == "" {
			return false
		}
	}
	return true
}

type guardedJob struct {
	name   string
	job    Job
	task   Task
	logger *slog.Logger
	busy   atomic.Bool
}

func newGuardedJob(sched Scheduler, name, spec string, task Task, logger *slog.Logger) (*guardedJob, error) {
	j := guardedJob{
		name:   name,
		task:   task,
		logger: logger.With(slog.String("job", name)),
	}
	var err error
	if j.job, err = sched.Schedule(spec, j.tick); err != nil {
		return nil, err
	}
	return &j, nil
}

func (j *guardedJob) start() {
	if !j.job.Running() {
		j.job.Start()
		j.logger.Info("job started")
	}
}

func (j *guardedJob) stop() {
	if j.job.Running() {
		j.job.Stop()
		j.logger.Info("job stopped")
	}
}

// tick runs the task. If the previous tick is somehow still running after a
// full hour or week, this one is skipped rather than run concurrently.
func (j *guardedJob) tick() {
	if !j.busy.CompareAndSwap(false, true) {
		j.logger.Warn("previous run still in progress, skipping")
		return
	}
	defer j.busy.Store(false)

	j.logger.Info("run starting")
	result, err := j.task(context.Background())
	if err != nil {
		j.logger.Error("run failed", slog.Any("err", err))
		return
	}
	j.logger.Info("run completed", slog.Bool("success", result.Success), slog.String("message", result.Message))
}
