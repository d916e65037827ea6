// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avian-io/roost/internal/adapters/identity"
	"github.com/avian-io/roost/internal/domain/model"
)

// Dependencies is the service surface required by the HTTP handlers.
// Using an interface bundle keeps the handler layer loosely coupled to
// implementations in other packages.
type Dependencies interface {
	// Device registry, owner-scoped.
	RegisterDevice(ctx context.Context, ownerID, deviceID, name string) (model.Device, error)
	ListDevices(ctx context.Context, ownerID string) ([]model.Device, error)
	RemoveDevice(ctx context.Context, ownerID, deviceID string) error
	DeviceTelemetry(ctx context.Context, ownerID, deviceID string) ([]model.TelemetryRecord, error)

	// Telemetry ingest (device path, unauthenticated).
	IngestTelemetry(ctx context.Context, deviceID string, payload []byte) (string, error)

	// Owner data and ranking.
	OwnerTelemetry(ctx context.Context, ownerID string) ([]model.TelemetryRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]model.ScoreEntry, error)

	// Inference gateway.
	GenerateText(ctx context.Context, modelID, prompt string) (string, error)
	GenerateVision(ctx context.Context, req VisionRequest) (string, error)
}

// VisionRequest carries a vision-analysis request: the prompt plus either
// a remote image URL or a device whose stored images should be read.
type VisionRequest struct {
	Model     string
	Prompt    string
	ImageURL  string
	DeviceID  string
	MaxImages int
}

// Server wires HTTP routes for the business API.
type Server struct {
	devicesHandler   *DevicesHandler
	ingestHandler    *IngestHandler
	usersHandler     *UsersHandler
	inferenceHandler *InferenceHandler
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	verifier         identity.Verifier
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, verifier identity.Verifier, stats StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		devicesHandler:   NewDevicesHandler(deps),
		ingestHandler:    NewIngestHandler(deps),
		usersHandler:     NewUsersHandler(deps, maxLeaderboardLimit),
		inferenceHandler: NewInferenceHandler(deps),
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(stats),
		verifier:         verifier,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return AuthMiddleware(s.verifier, h)
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/devices/create", MetricsMiddleware(auth(s.devicesHandler.HandleCreate), "devices_create"))
	mux.HandleFunc("/devices/list", MetricsMiddleware(auth(s.devicesHandler.HandleList), "devices_list"))
	mux.HandleFunc("/devices/delete/", MetricsMiddleware(auth(s.devicesHandler.HandleDelete), "devices_delete"))
	mux.HandleFunc("/devices/get/", MetricsMiddleware(auth(s.devicesHandler.HandleData), "devices_data"))

	mux.HandleFunc("/ingest/", MetricsMiddleware(s.ingestHandler.HandleIngest, "ingest"))

	mux.HandleFunc("/users/data", MetricsMiddleware(auth(s.usersHandler.HandleData), "users_data"))
	mux.HandleFunc("/users/leaderboard", MetricsMiddleware(s.usersHandler.HandleLeaderboard, "leaderboard"))

	mux.HandleFunc("/inference/llm", MetricsMiddleware(auth(s.inferenceHandler.HandleLLM), "inference_llm"))
	mux.HandleFunc("/inference/vlm", MetricsMiddleware(auth(s.inferenceHandler.HandleVLM), "inference_vlm"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// userContextKey carries the authenticated user through the request context.
type userContextKey struct{}

// withUser stores the authenticated user in ctx.
func withUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// userFrom retrieves the authenticated user set by AuthMiddleware.
func userFrom(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(model.User)
	return u, ok
}
