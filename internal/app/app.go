// Package app wires the melcloud client, poller, metrics, health endpoint and
// schedule guard into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clambin/melcloud-monitor/internal/collector"
	"github.com/clambin/melcloud-monitor/internal/health"
	"github.com/clambin/melcloud-monitor/internal/melcloud"
	"github.com/clambin/melcloud-monitor/internal/notifier"
	"github.com/clambin/melcloud-monitor/internal/optimizer"
	"github.com/clambin/melcloud-monitor/internal/poller"
	"github.com/clambin/melcloud-monitor/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// Task is a long-running component. Run blocks until ctx is canceled.
type Task interface {
	Run(ctx context.Context) error
}

// App holds the wired components.
type App struct {
	client *melcloud.Client
	guard  *scheduler.Guard
	tasks  []Task
	email  string
	pass   string
	logger *slog.Logger
}

// New builds the application from the configuration.
func New(cfg *viper.Viper, registry *prometheus.Registry, logger *slog.Logger) (*App, error) {
	client := melcloud.New(
		logger.With(slog.String("component", "melcloud")),
		melcloud.WithHTTPClient(instrumentedHTTPClient(cfg.GetDuration("melcloud.timeout"), registry)),
	)

	profile, err := maybeLoadProfile(filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "profile.yaml"), logger)
	if err != nil {
		return nil, err
	}

	n := notifier.New(cfg.GetString("slack.token"), cfg.GetString("slack.channel"), logger.With(slog.String("component", "notifier")))
	opt := optimizer.New(client, cfg.GetInt(scheduler.SettingDevice), profile, n, logger.With(slog.String("component", "optimizer")))

	sched, err := scheduler.NewCronScheduler(cfg.GetString("scheduler.timezone"))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	guard, err := scheduler.NewGuard(viperSettings{viper: cfg}, sched, opt.RunHourly, opt.RunWeekly, logger.With(slog.String("component", "guard")))
	if err != nil {
		return nil, fmt.Errorf("guard: %w", err)
	}

	a := App{
		client: client,
		guard:  guard,
		email:  cfg.GetString(scheduler.SettingAccount),
		pass:   cfg.GetString("melcloud.password"),
		logger: logger,
	}

	p := poller.New(client, cfg.GetDuration("poller.interval"), logger.With(slog.String("component", "poller")))
	a.tasks = append(a.tasks, p)

	coll := &collector.Collector{Poller: p, Logger: logger.With(slog.String("component", "collector"))}
	registry.MustRegister(coll)
	a.tasks = append(a.tasks, coll)

	a.tasks = append(a.tasks, newHTTPServer(
		cfg.GetString("exporter.addr"),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logger.With(slog.String("component", "exporter")),
	))

	h := health.New(p, logger.With(slog.String("component", "health")))
	a.tasks = append(a.tasks, h)
	mux := http.NewServeMux()
	mux.Handle("/health", h)
	a.tasks = append(a.tasks, newHTTPServer(cfg.GetString("health.addr"), mux, logger.With(slog.String("component", "health-server"))))

	return &a, nil
}

// Run logs in, starts the scheduled jobs when configured, and runs all tasks
// until ctx is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.email != "" && a.pass != "" {
		if err := a.client.Login(ctx, a.email, a.pass); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		a.logger.Info("logged in to melcloud")
	} else {
		a.logger.Warn("melcloud credentials not configured")
	}

	a.guard.EnsureRunningIfReady()
	defer a.guard.Stop()

	group, ctx := errgroup.WithContext(ctx)
	for _, task := range a.tasks {
		group.Go(func() error { return task.Run(ctx) })
	}
	return group.Wait()
}

func maybeLoadProfile(path string, logger *slog.Logger) (optimizer.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no profile file found, using defaults")
			return optimizer.DefaultProfile(), nil
		}
		return optimizer.Profile{}, err
	}
	defer func() { _ = f.Close() }()

	return optimizer.LoadProfile(f)
}
