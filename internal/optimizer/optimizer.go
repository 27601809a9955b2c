// Package optimizer implements the hourly temperature optimization and the
// weekly calibration routines that the schedule guard invokes.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/clambin/melcloud-monitor/internal/melcloud"
	"github.com/clambin/melcloud-monitor/internal/scheduler"
)

// MelCloudClient is the part of the melcloud client the optimizer uses.
type MelCloudClient interface {
	GetDeviceByID(id int) (melcloud.Device, bool)
	ListDevices(ctx context.Context) ([]melcloud.Device, error)
	GetDeviceState(ctx context.Context, deviceID, buildingID int) (melcloud.DeviceState, error)
	SetDeviceTemperature(ctx context.Context, deviceID, buildingID int, targetTemperature float64) error
}

// Notifier posts a human-readable message about an optimizer action.
type Notifier interface {
	Notify(message string)
}

type sample struct {
	taken  time.Time
	room   float64
	target float64
}

// Optimizer drives one device towards the comfort profile. RunHourly and
// RunWeekly match the scheduler.Task signature and are wired into the Guard.
type Optimizer struct {
	client   MelCloudClient
	deviceID int
	profile  Profile
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	lock    sync.Mutex
	samples []sample
	// average room-vs-target offset observed over the last calibration window
	thermalOffset float64
}

// New returns an Optimizer for the given device. notifier may be nil.
func New(client MelCloudClient, deviceID int, profile Profile, notifier Notifier, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		client:   client,
		deviceID: deviceID,
		profile:  profile,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// RunHourly reads the device state and, when the profile asks for a different
// temperature than currently set, writes the new target.
func (o *Optimizer) RunHourly(ctx context.Context) (scheduler.Result, error) {
	device, err := o.device(ctx)
	if err != nil {
		return scheduler.Result{}, err
	}

	state, err := o.client.GetDeviceState(ctx, device.ID, device.BuildingID)
	if err != nil {
		return scheduler.Result{}, err
	}

	room, _ := state.RoomTemperature()
	current, ok := state.TargetTemperature()
	if !ok {
		return scheduler.Result{}, fmt.Errorf("device %d: state has no target temperature", device.ID)
	}

	o.record(room, current)

	want := o.profile.clamp(o.profile.TargetFor(o.now().Hour()) + o.calibration())
	if math.Abs(want-current) < o.profile.Deadband {
		return scheduler.Result{Success: true, Message: fmt.Sprintf("target %.1f°C unchanged", current)}, nil
	}

	if err = o.client.SetDeviceTemperature(ctx, device.ID, device.BuildingID, want); err != nil {
		return scheduler.Result{}, err
	}

	message := fmt.Sprintf("%s: target temperature %.1f°C → %.1f°C (room %.1f°C)", device.Name, current, want, room)
	o.logger.Info("temperature adjusted",
		slog.String("device", device.Name),
		slog.Float64("from", current),
		slog.Float64("to", want),
		slog.Float64("room", room),
	)
	if o.notifier != nil {
		o.notifier.Notify(message)
	}
	return scheduler.Result{Success: true, Message: message}, nil
}

// RunWeekly recalibrates the thermal offset from the samples gathered by the
// hourly runs and discards them.
func (o *Optimizer) RunWeekly(_ context.Context) (scheduler.Result, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	if len(o.samples) == 0 {
		return scheduler.Result{Success: true, Message: "no samples, calibration unchanged"}, nil
	}

	var totalOffset float64
	for _, s := range o.samples {
		totalOffset += s.target - s.room
	}
	offset := totalOffset / float64(len(o.samples))
	// bound the correction so a sensor glitch cannot push the target around
	offset = math.Max(-2, math.Min(2, offset))

	o.thermalOffset = offset
	count := len(o.samples)
	o.samples = o.samples[:0]

	message := fmt.Sprintf("calibrated thermal offset to %.2f°C from %d samples", offset, count)
	o.logger.Info("weekly calibration done", slog.Float64("offset", offset), slog.Int("samples", count))
	if o.notifier != nil {
		o.notifier.Notify(message)
	}
	return scheduler.Result{Success: true, Message: message}, nil
}

// device resolves the configured device through the registry, refreshing the
// enumeration when the cache doesn't hold it yet.
func (o *Optimizer) device(ctx context.Context) (melcloud.Device, error) {
	if device, ok := o.client.GetDeviceByID(o.deviceID); ok {
		return device, nil
	}
	if _, err := o.client.ListDevices(ctx); err != nil {
		return melcloud.Device{}, err
	}
	device, ok := o.client.GetDeviceByID(o.deviceID)
	if !ok {
		return melcloud.Device{}, fmt.Errorf("device %d not found on account", o.deviceID)
	}
	return device, nil
}

func (o *Optimizer) record(room, target float64) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.samples = append(o.samples, sample{taken: o.now(), room: room, target: target})
}

func (o *Optimizer) calibration() float64 {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.thermalOffset
}
