package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/avian-io/roost/internal/probe"
	"github.com/avian-io/roost/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumReadings = 25
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 5 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL of the service")
		token       = flag.String("token", "", "Owner bearer token for authenticated routes")
		deviceID    = flag.String("device", "", "Device id to register (default: probe-RANDOM)")
		numReadings = flag.Int("readings", defaultNumReadings, "Number of readings to submit")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		prompt      = flag.String("prompt", "", "Optional prompt to exercise text inference")
		keepDevice  = flag.Bool("keep", false, "Keep the probe device instead of deleting it")
	)
	flag.Parse()

	if *token == "" {
		os.Stderr.WriteString("a bearer token is required, pass -token\n")
		os.Exit(1)
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	device := *deviceID
	if device == "" {
		device = fmt.Sprintf("probe-%s", uuid.New().String()[:8])
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &probe.Config{
		BaseURL:     *baseURL,
		Token:       *token,
		DeviceID:    device,
		NumReadings: *numReadings,
		Timeout:     *timeout,
		Prompt:      *prompt,
		KeepDevice:  *keepDevice,
	}

	if err := probe.Run(ctx, config); err != nil {
		os.Stderr.WriteString("probe failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
