// Package poller periodically takes a snapshot of all devices and their state
// and publishes it to subscribers (collector, health).
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/clambin/melcloud-monitor/internal/melcloud"
	"github.com/clambin/melcloud-monitor/pkg/pubsub"
)

// Poller is the subscription interface offered to consumers of updates.
type Poller interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
	Refresh()
}

// MelCloudGetter is the read side of the melcloud client.
type MelCloudGetter interface {
	ListDevices(ctx context.Context) ([]melcloud.Device, error)
	GetDeviceState(ctx context.Context, deviceID, buildingID int) (melcloud.DeviceState, error)
}

// Update is one snapshot of the account: the enumerated devices and the state
// document per device id.
type Update struct {
	Devices []melcloud.Device
	States  map[int]melcloud.DeviceState
}

var _ Poller = &MelCloudPoller{}

// MelCloudPoller polls at a fixed interval and on demand (Refresh).
type MelCloudPoller struct {
	MelCloudClient MelCloudGetter
	*pubsub.Publisher[Update]
	interval time.Duration
	logger   *slog.Logger
	refresh  chan struct{}
}

// New returns a MelCloudPoller polling client every interval.
func New(client MelCloudGetter, interval time.Duration, logger *slog.Logger) *MelCloudPoller {
	return &MelCloudPoller{
		MelCloudClient: client,
		Publisher:      pubsub.New[Update](logger.With(slog.String("component", "publisher"))),
		interval:       interval,
		logger:         logger,
		refresh:        make(chan struct{}),
	}
}

// Run polls until ctx is canceled.
func (p *MelCloudPoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.refresh:
		}

		if err := p.poll(ctx); err != nil {
			p.logger.Error("failed to poll melcloud", slog.Any("err", err))
		}
	}
}

// Refresh triggers an immediate poll.
func (p *MelCloudPoller) Refresh() {
	p.refresh <- struct{}{}
}

func (p *MelCloudPoller) poll(ctx context.Context) error {
	start := time.Now()
	update, err := p.update(ctx)
	if err != nil {
		return err
	}
	p.Publisher.Publish(update)
	p.logger.Debug("poll completed", slog.Duration("duration", time.Since(start)))
	return nil
}

func (p *MelCloudPoller) update(ctx context.Context) (Update, error) {
	devices, err := p.MelCloudClient.ListDevices(ctx)
	if err != nil {
		return Update{}, err
	}

	states := make(map[int]melcloud.DeviceState, len(devices))
	for _, device := range devices {
		state, err := p.MelCloudClient.GetDeviceState(ctx, device.ID, device.BuildingID)
		if err != nil {
			return Update{}, err
		}
		states[device.ID] = state
	}
	return Update{Devices: devices, States: states}, nil
}
