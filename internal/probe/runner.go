package probe

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/avian-io/roost/internal/domain/model"
	"github.com/avian-io/roost/pkg/logger"
)

// readingCeiling bounds the random potentiometer values the probe sends.
const readingCeiling = 100.0

// Run executes the complete smoke probe against a running service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting service probe",
		logger.String("baseURL", config.BaseURL),
		logger.String("device", config.DeviceID),
		logger.Int("readings", config.NumReadings),
	)

	c := newClient(config.Timeout, config.Token)

	if err := checkHealth(ctx, c, config); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if err := registerDevice(ctx, c, config); err != nil {
		return fmt.Errorf("device registration failed: %w", err)
	}
	if !config.KeepDevice {
		defer cleanupDevice(c, config)
	}

	if err := submitReadings(ctx, c, config, stats); err != nil {
		return fmt.Errorf("reading submission failed: %w", err)
	}
	if err := verifyReadings(ctx, c, config, stats); err != nil {
		return fmt.Errorf("reading verification failed: %w", err)
	}
	if err := checkLeaderboard(ctx, c, config); err != nil {
		return fmt.Errorf("leaderboard check failed: %w", err)
	}
	if config.Prompt != "" {
		if err := runInference(ctx, c, config); err != nil {
			return fmt.Errorf("inference check failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "probe completed",
		logger.Int("submitted", stats.Submitted),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
	)
	return nil
}

func checkHealth(ctx context.Context, c *client, config *Config) error {
	status, _, err := c.do(ctx, http.MethodGet, config.BaseURL+"/healthz", nil, false)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected health status %d", status)
	}
	return nil
}

func registerDevice(ctx context.Context, c *client, config *Config) error {
	body := map[string]string{
		"device_id": config.DeviceID,
		"name":      "probe device",
	}
	status, data, err := c.do(ctx, http.MethodPost, config.BaseURL+"/devices/create", body, true)
	if err != nil {
		return err
	}
	if status == http.StatusCreated {
		return nil
	}
	// A duplicate means a previous probe run left the device behind.
	if status == http.StatusBadRequest && bytes.Contains(data, []byte("duplicate_device")) {
		return nil
	}
	return fmt.Errorf("status %d: %s", status, data)
}

func cleanupDevice(c *client, config *Config) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	status, data, err := c.do(ctx, http.MethodDelete, config.BaseURL+"/devices/delete/"+config.DeviceID, nil, true)
	if err != nil || status != http.StatusOK {
		logger.Get().Warn(ctx, "failed to clean up probe device",
			logger.Int("status", status),
			logger.String("body", string(data)),
			logger.Error(err),
		)
	}
}

func submitReadings(ctx context.Context, c *client, config *Config, stats *Stats) error {
	url := config.BaseURL + "/ingest/" + config.DeviceID
	for i := 0; i < config.NumReadings; i++ {
		body := map[string]any{
			"potentiometer_value": rand.Float64() * readingCeiling, //nolint:gosec // test data
			"timestamp":           time.Now().UTC().Format(time.RFC3339),
		}
		status, data, err := c.do(ctx, http.MethodPost, url, body, false)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			stats.Failed++
			return fmt.Errorf("reading %d: status %d: %s", i, status, data)
		}
		stats.Submitted++
	}
	return nil
}

func verifyReadings(ctx context.Context, c *client, config *Config, stats *Stats) error {
	var records []model.TelemetryRecord
	url := config.BaseURL + "/devices/get/" + config.DeviceID + "/data"
	if err := c.getJSON(ctx, url, true, &records); err != nil {
		return err
	}
	if len(records) < stats.Submitted {
		return fmt.Errorf("stored %d of %d submitted readings", len(records), stats.Submitted)
	}
	return nil
}

func checkLeaderboard(ctx context.Context, c *client, config *Config) error {
	var entries []model.ScoreEntry
	if err := c.getJSON(ctx, config.BaseURL+"/users/leaderboard", false, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("leaderboard is empty after ingesting readings")
	}
	logger.Get().Info(ctx, "leaderboard populated",
		logger.Int("entries", len(entries)),
		logger.Float64("topScore", entries[0].Score),
	)
	return nil
}

func runInference(ctx context.Context, c *client, config *Config) error {
	body := map[string]string{"prompt": config.Prompt}
	status, data, err := c.do(ctx, http.MethodPost, config.BaseURL+"/inference/llm", body, true)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("status %d: %s", status, data)
	}
	logger.Get().Info(ctx, "inference responded", logger.Int("bytes", len(data)))
	return nil
}
