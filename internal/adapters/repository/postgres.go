package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avian-io/roost/internal/domain/model"
)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and pings the server.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateDevice(ctx context.Context, d model.Device) (model.Device, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO devices (device_id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING device_id, name, owner_id, created_at`,
		d.DeviceID, d.Name, d.OwnerID)

	var out model.Device
	if err := row.Scan(&out.DeviceID, &out.Name, &out.OwnerID, &out.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Device{}, fmt.Errorf("device %s: %w", d.DeviceID, ErrDuplicate)
		}
		return model.Device{}, fmt.Errorf("create device: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeviceExists(ctx context.Context, deviceID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE device_id = $1)`, deviceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("device exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeviceByOwner(ctx context.Context, deviceID, ownerID string) (model.Device, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT device_id, name, owner_id, created_at
		FROM devices
		WHERE device_id = $1 AND owner_id = $2`,
		deviceID, ownerID)

	var d model.Device
	if err := row.Scan(&d.DeviceID, &d.Name, &d.OwnerID, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Device{}, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
		}
		return model.Device{}, fmt.Errorf("device by owner: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) DevicesByOwner(ctx context.Context, ownerID string) ([]model.Device, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT device_id, name, owner_id, created_at
		FROM devices
		WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("devices by owner: %w", err)
	}
	defer rows.Close()
	return scanDevices(rows)
}

func (s *PostgresStore) AllDevices(ctx context.Context) ([]model.Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT device_id, name, owner_id, created_at FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("all devices: %w", err)
	}
	defer rows.Close()
	return scanDevices(rows)
}

func (s *PostgresStore) DeleteDevice(ctx context.Context, deviceID, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM devices WHERE device_id = $1 AND owner_id = $2`,
		deviceID, ownerID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) InsertTelemetry(ctx context.Context, deviceID string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO telemetry (id, device_id, payload)
		VALUES ($1, $2, $3)`,
		id, deviceID, payload)
	if err != nil {
		return "", fmt.Errorf("insert telemetry: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) TelemetryByDevice(ctx context.Context, deviceID string) ([]model.TelemetryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, device_id, payload, created_at
		FROM telemetry
		WHERE device_id = $1
		ORDER BY created_at DESC`,
		deviceID)
	if err != nil {
		return nil, fmt.Errorf("telemetry by device: %w", err)
	}
	defer rows.Close()
	return scanTelemetry(rows)
}

func (s *PostgresStore) TelemetryByDevices(ctx context.Context, deviceIDs []string) ([]model.TelemetryRecord, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, device_id, payload, created_at
		FROM telemetry
		WHERE device_id = ANY($1)
		ORDER BY created_at DESC`,
		deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("telemetry by devices: %w", err)
	}
	defer rows.Close()
	return scanTelemetry(rows)
}

func (s *PostgresStore) AllTelemetry(ctx context.Context) ([]model.TelemetryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, device_id, payload, created_at FROM telemetry`)
	if err != nil {
		return nil, fmt.Errorf("all telemetry: %w", err)
	}
	defer rows.Close()
	return scanTelemetry(rows)
}

func scanDevices(rows pgx.Rows) ([]model.Device, error) {
	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.DeviceID, &d.Name, &d.OwnerID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return out, nil
}

func scanTelemetry(rows pgx.Rows) ([]model.TelemetryRecord, error) {
	var out []model.TelemetryRecord
	for rows.Next() {
		var r model.TelemetryRecord
		var payload []byte
		if err := rows.Scan(&r.ID, &r.DeviceID, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		// Decode the stored JSON so responses carry the object, not bytes.
		var decoded any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			decoded = string(payload)
		}
		r.Payload = decoded
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry: %w", err)
	}
	return out, nil
}
