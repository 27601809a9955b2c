// Package collector exposes device telemetry as Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/clambin/melcloud-monitor/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deviceRoomTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("melcloud", "device", "room_temperature_celsius"),
		"Current room temperature reported by this device in degrees celsius",
		[]string{"device_name", "device_id"},
		nil,
	)
	deviceTargetTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("melcloud", "device", "target_temperature_celsius"),
		"Target temperature of this device in degrees celsius",
		[]string{"device_name", "device_id"},
		nil,
	)
	devicePower = prometheus.NewDesc(
		prometheus.BuildFQName("melcloud", "device", "power"),
		"1 if the device is switched on",
		[]string{"device_name", "device_id"},
		nil,
	)
	deviceCount = prometheus.NewDesc(
		prometheus.BuildFQName("melcloud", "", "devices"),
		"Number of devices on the account",
		nil,
		nil,
	)
)

var _ prometheus.Collector = &Collector{}

// Collector reports metrics from the last poller update.
type Collector struct {
	Poller poller.Poller
	Logger *slog.Logger

	lock       sync.RWMutex
	lastUpdate *poller.Update
}

// Run consumes poller updates until ctx is canceled.
func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Poller.Subscribe()
	defer c.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.lock.Lock()
			c.lastUpdate = &update
			c.lock.Unlock()
		}
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- deviceRoomTemperature
	ch <- deviceTargetTemperature
	ch <- devicePower
	ch <- deviceCount
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.lastUpdate == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(deviceCount, prometheus.GaugeValue, float64(len(c.lastUpdate.Devices)))

	for _, device := range c.lastUpdate.Devices {
		state, ok := c.lastUpdate.States[device.ID]
		if !ok {
			continue
		}
		id := strconv.Itoa(device.ID)
		if room, found := state.RoomTemperature(); found {
			ch <- prometheus.MustNewConstMetric(deviceRoomTemperature, prometheus.GaugeValue, room, device.Name, id)
		}
		if target, found := state.TargetTemperature(); found {
			ch <- prometheus.MustNewConstMetric(deviceTargetTemperature, prometheus.GaugeValue, target, device.Name, id)
		}
		var power float64
		if state.Power() {
			power = 1
		}
		ch <- prometheus.MustNewConstMetric(devicePower, prometheus.GaugeValue, power, device.Name, id)
	}
}
