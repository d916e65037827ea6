// Package repository provides row-oriented access to the devices and
// telemetry collections.
package repository

import (
	"context"

	"github.com/avian-io/roost/internal/domain/model"
)

// Store is the persistence contract consumed by the service layer.
// Leaderboard and scoring logic consume its read results as plain record
// sequences and stay agnostic to the querying mechanism.
type Store interface {
	// CreateDevice registers a device. Returns ErrDuplicate when the
	// device id is already taken.
	CreateDevice(ctx context.Context, d model.Device) (model.Device, error)

	// DeviceExists reports whether a device id is registered.
	DeviceExists(ctx context.Context, deviceID string) (bool, error)

	// DeviceByOwner returns one device scoped to its owner.
	// Returns ErrNotFound when the device is unknown or owned by someone else.
	DeviceByOwner(ctx context.Context, deviceID, ownerID string) (model.Device, error)

	// DevicesByOwner returns every device registered to an owner.
	DevicesByOwner(ctx context.Context, ownerID string) ([]model.Device, error)

	// AllDevices returns every registered device.
	AllDevices(ctx context.Context) ([]model.Device, error)

	// DeleteDevice removes an owner's device. Returns ErrNotFound when
	// the device is unknown or owned by someone else.
	DeleteDevice(ctx context.Context, deviceID, ownerID string) error

	// InsertTelemetry stores one reading and returns its id.
	InsertTelemetry(ctx context.Context, deviceID string, payload []byte) (string, error)

	// TelemetryByDevice returns a device's readings, newest first.
	TelemetryByDevice(ctx context.Context, deviceID string) ([]model.TelemetryRecord, error)

	// TelemetryByDevices returns readings across devices, newest first.
	TelemetryByDevices(ctx context.Context, deviceIDs []string) ([]model.TelemetryRecord, error)

	// AllTelemetry returns every reading in the collection.
	AllTelemetry(ctx context.Context) ([]model.TelemetryRecord, error)
}
