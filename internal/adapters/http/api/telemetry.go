// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/avian-io/roost/internal/adapters/repository"
	"github.com/avian-io/roost/pkg/metrics"
)

// maxIngestBody bounds an ingest payload; base64 image frames dominate.
const maxIngestBody = 8 << 20

// IngestHandler handles telemetry ingest requests from devices. These
// requests carry no bearer token; the device id in the path must match
// a registered device.
type IngestHandler struct {
	deps Dependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Dependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// HandleIngest handles POST /ingest/{device_id} requests.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	deviceID := pathSuffix(r.URL.Path, "/ingest/")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrMissingDeviceID))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateTelemetry(body); err != nil {
		metrics.RecordTelemetryRejected()
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := h.deps.IngestTelemetry(r.Context(), deviceID, body)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordTelemetryRejected()
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	metrics.RecordTelemetryIngested()
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "id": id})
}

// validateTelemetry checks that the payload is a JSON object carrying a
// numeric potentiometer_value field.
func validateTelemetry(body []byte) error {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return errors.New("payload must be a JSON object")
	}
	raw, ok := payload["potentiometer_value"]
	if !ok {
		return errors.New("potentiometer_value is required")
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.New("potentiometer_value must be numeric")
	}
	return nil
}
