package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"printerbot/internal/client"
	"printerbot/internal/config"
	"printerbot/internal/device"
	"printerbot/internal/logger"
	"printerbot/internal/metrics"
	"printerbot/internal/models"
	"printerbot/internal/printer"
)

// Device roles reported in models.DeviceStatus.
const (
	RolePSU   = "psu"
	RoleLight = "light"
)

// PowerService commands power devices and merges their command state with
// telemetry.
type PowerService struct {
	api     device.Doer
	state   *printer.State
	journal *Journal
	metrics *metrics.Metrics
	log     *logger.Logger
	roles   map[string]string
	shown   map[string]struct{}

	mu      sync.Mutex
	devices map[string]*device.Device
}

func NewPowerService(api device.Doer, state *printer.State, journal *Journal, m *metrics.Metrics, cfg config.Config, log *logger.Logger) *PowerService {
	if log == nil {
		log = logger.Nop()
	}
	p := &PowerService{
		api:     api,
		state:   state,
		journal: journal,
		metrics: m,
		log:     log.Named("power"),
		roles:   map[string]string{},
		shown:   map[string]struct{}{},
		devices: map[string]*device.Device{},
	}
	for name, role := range map[string]string{cfg.Devices.Power: RolePSU, cfg.Devices.Light: RoleLight} {
		if d := device.New(name, api, log); d != nil {
			p.devices[name] = d
			p.roles[name] = role
		}
	}
	for _, name := range cfg.Status.Devices {
		p.shown[name] = struct{}{}
	}
	return p
}

// PSU returns the configured printer power device, or nil.
func (p *PowerService) PSU() *device.Device { return p.byRole(RolePSU) }

// Light returns the configured light device, or nil.
func (p *PowerService) Light() *device.Device { return p.byRole(RoleLight) }

func (p *PowerService) byRole(role string) *device.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, r := range p.roles {
		if r == role {
			return p.devices[name]
		}
	}
	return nil
}

// lookup returns the Device for name, creating it for devices the
// controller has reported.
func (p *PowerService) lookup(name string) (*device.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.devices[name]; ok {
		return d, nil
	}
	reading, ok := p.state.Snapshot().PowerDevices[name]
	if !ok {
		return nil, ErrDeviceAbsent
	}
	d := device.New(name, p.api, p.log)
	if d == nil {
		return nil, ErrDeviceAbsent
	}
	d.SetState(reading.On())
	p.devices[name] = d
	return d, nil
}

// Reconcile applies a controller power report to the state and to the
// command-side device.
func (p *PowerService) Reconcile(dev client.PowerDevice) {
	p.state.UpdatePowerDevice(dev.Device, printer.PowerUpdate{
		Status:              &dev.Status,
		LockedWhilePrinting: &dev.LockedWhilePrinting,
		Type:                &dev.Type,
		IsShutdown:          &dev.IsShutdown,
	})
	p.mu.Lock()
	d := p.devices[dev.Device]
	p.mu.Unlock()
	if d != nil {
		d.SetState(dev.Status == "on")
	}
}

// Devices lists every known power device, sorted by name. A non-empty
// status.devices setting limits the list.
func (p *PowerService) Devices() []models.DeviceStatus {
	snap := p.state.Snapshot()

	names := map[string]struct{}{}
	for name := range snap.PowerDevices {
		names[name] = struct{}{}
	}
	p.mu.Lock()
	for name := range p.devices {
		names[name] = struct{}{}
	}
	p.mu.Unlock()

	out := make([]models.DeviceStatus, 0, len(names))
	for name := range names {
		if _, ok := p.shown[name]; len(p.shown) > 0 && !ok {
			continue
		}
		out = append(out, p.status(name, snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *PowerService) status(name string, snap printer.Snapshot) models.DeviceStatus {
	p.mu.Lock()
	d := p.devices[name]
	role := p.roles[name]
	p.mu.Unlock()

	st := models.DeviceStatus{Name: name, Role: role}
	if r, ok := snap.PowerDevices[name]; ok {
		st.On = r.On()
		st.Status = r.Status
		st.LockedWhilePrinting = r.LockedWhilePrinting
		st.Type = r.Type
	}
	if d != nil {
		if st.Status == "" {
			st.On = d.IsOn()
		}
		st.LastError = d.LastError()
	}
	return st
}

// SwitchDevice turns name on or off.
func (p *PowerService) SwitchDevice(ctx context.Context, name string, on bool) (models.DeviceStatus, error) {
	d, err := p.lookup(name)
	if err != nil {
		return models.DeviceStatus{}, err
	}
	on, failure := d.Command(ctx, on)
	return p.finish(d, on, failure)
}

// ToggleDevice flips name relative to its last known state.
func (p *PowerService) ToggleDevice(ctx context.Context, name string) (models.DeviceStatus, error) {
	d, err := p.lookup(name)
	if err != nil {
		return models.DeviceStatus{}, err
	}
	on, failure := d.ToggleCommand(ctx)
	return p.finish(d, on, failure)
}

// finish records the outcome of a command that left the device in state on.
// failure is the command's own error message, "" on success.
func (p *PowerService) finish(d *device.Device, on bool, failure string) (models.DeviceStatus, error) {
	name := d.Name()
	p.metrics.DeviceCommand(name, failure == "")

	if failure != "" {
		p.journal.Record(models.EventError, "power command failed", map[string]any{
			"device": name, "error": failure,
		})
		return p.status(name, p.state.Snapshot()), fmt.Errorf("%w: %s: %s", ErrDeviceCommand, name, failure)
	}

	status := "off"
	if on {
		status = "on"
	}
	p.state.UpdatePowerDevice(name, printer.PowerUpdate{Status: &status})
	p.journal.Record(models.EventPower, name+" switched "+status, map[string]any{"device": name, "on": on})
	return p.status(name, p.state.Snapshot()), nil
}
