// Package cmd implements the melcloud-monitor command line interface.
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/clambin/melcloud-monitor/internal/app"
	"github.com/clambin/melcloud-monitor/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "melcloud-monitor",
		Short: "Monitors & optimizes MELCloud-connected HVAC devices",
		RunE:  run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	logger := newLogger(viper.GetBool("debug"))
	logger.Info("melcloud-monitor starting", slog.String("version", cmd.Version))
	defer logger.Info("melcloud-monitor stopped")

	a, err := app.New(viper.GetViper(), prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return a.Run(ctx)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.Flags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.Flags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/melcloud-monitor/")
		viper.AddConfigPath("$HOME/.melcloud-monitor")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetDefault("debug", false)
	viper.SetDefault(scheduler.SettingAccount, "")
	viper.SetDefault("melcloud.password", "")
	viper.SetDefault(scheduler.SettingDevice, "")
	viper.SetDefault("melcloud.timeout", 30*time.Second)
	viper.SetDefault("poller.interval", time.Minute)
	viper.SetDefault("scheduler.timezone", scheduler.DefaultTimezone)
	viper.SetDefault("exporter.addr", ":9090")
	viper.SetDefault("health.addr", ":8080")
	viper.SetDefault("slack.token", "")
	viper.SetDefault("slack.channel", "")

	viper.SetEnvPrefix("MELCLOUD_MONITOR")
	viper.AutomaticEnv()

	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
