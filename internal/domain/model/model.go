// Package model contains domain models passed between layers.
package model

import "time"

// Device represents a registered sensor device. Devices are created through
// registration and read-only everywhere else.
type Device struct {
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TelemetryRecord is one sensor/image reading submitted by a device.
// Payload is either a structured map or a serialized JSON string; scoring
// tolerates both.
type TelemetryRecord struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an authenticated device owner.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ScoreEntry is one ranked leaderboard row. Derived on every request,
// never persisted.
type ScoreEntry struct {
	OwnerID     string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
	RecordCount int     `json:"record_count"`
}
