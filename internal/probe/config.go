// Package probe exercises a running service end to end: it registers a
// device, submits readings, reads them back and checks the leaderboard.
package probe

import "time"

// Config carries probe settings from the command line.
type Config struct {
	// BaseURL of the service under test.
	BaseURL string

	// Token is the owner bearer token used for authenticated routes.
	Token string

	// DeviceID registered and fed by the probe.
	DeviceID string

	// NumReadings to submit.
	NumReadings int

	// Timeout for each HTTP request.
	Timeout time.Duration

	// Prompt, when non-empty, additionally exercises text inference.
	Prompt string

	// KeepDevice skips the cleanup deletion at the end of the run.
	KeepDevice bool
}

// Stats tracks probe progress and timing.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Submitted int
	Failed    int
}
