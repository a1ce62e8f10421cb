// Package device drives controller power outlets (printer PSU, light).
package device

import (
	"context"
	"fmt"
	"sync"

	"printerbot/internal/client"
	"printerbot/internal/logger"
)

// Doer executes authenticated controller requests. *client.Session
// implements it.
type Doer interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// Device is one controller power device. Commands on the same Device are
// serialized; different devices do not contend.
type Device struct {
	name string
	api  Doer
	log  *logger.Logger

	cmdMu sync.Mutex // held for the whole command round trip

	mu        sync.RWMutex
	isOn      bool
	lastError string
}

// New returns a Device for name, or nil when name is empty. A nil *Device
// means the feature is disabled.
func New(name string, api Doer, log *logger.Logger) *Device {
	if name == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Device{name: name, api: api, log: log.Named("device")}
}

// Name returns the controller device id.
func (d *Device) Name() string { return d.name }

// IsOn returns the last known state.
func (d *Device) IsOn() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isOn
}

// LastError returns the message of the last failed command, or "".
func (d *Device) LastError() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastError
}

// SetState reconciles the known state from telemetry without issuing a
// command.
func (d *Device) SetState(on bool) {
	d.mu.Lock()
	d.isOn = on
	d.mu.Unlock()
}

// Switch turns the device on or off. On success it returns on and clears
// LastError. On failure it records the controller's message in LastError and
// returns the previous state.
func (d *Device) Switch(ctx context.Context, on bool) bool {
	state, _ := d.Command(ctx, on)
	return state
}

// Toggle flips the device relative to its last known state.
func (d *Device) Toggle(ctx context.Context) bool {
	state, _ := d.ToggleCommand(ctx)
	return state
}

// Command is Switch that also returns the failure message of this command,
// or "" on success. Both values are taken under the command lock, so a later
// command on the same device cannot overwrite them.
func (d *Device) Command(ctx context.Context, on bool) (bool, string) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	return d.switchLocked(ctx, on)
}

// ToggleCommand is Toggle with the failure message of this command.
func (d *Device) ToggleCommand(ctx context.Context) (bool, string) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	return d.switchLocked(ctx, !d.IsOn())
}

func (d *Device) switchLocked(ctx context.Context, on bool) (bool, string) {
	resp, err := d.api.Do(ctx, client.PowerRequest(d.name, on))

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case err != nil:
		d.lastError = err.Error()
	case !resp.OK():
		msg := client.ErrorMessage(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("controller returned status %d", resp.Status)
		}
		d.lastError = msg
	default:
		d.isOn = on
		d.lastError = ""
		d.log.Infow("device_switched", "device", d.name, "on", on)
		return d.isOn, ""
	}

	d.log.Errorw("device_switch_failed", "device", d.name, "on", on, "err", d.lastError)
	return d.isOn, d.lastError
}
