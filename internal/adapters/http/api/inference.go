// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/avian-io/roost/internal/adapters/genai"
	"github.com/avian-io/roost/internal/adapters/imagery"
	"github.com/avian-io/roost/internal/adapters/repository"
	"github.com/avian-io/roost/pkg/metrics"
)

// InferenceHandler handles generative inference requests.
type InferenceHandler struct {
	deps Dependencies
}

// NewInferenceHandler creates a new inference handler.
func NewInferenceHandler(deps Dependencies) *InferenceHandler {
	return &InferenceHandler{deps: deps}
}

type llmRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type vlmRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	ImageURL  string `json:"image_url"`
	DeviceID  string `json:"device_id"`
	MaxImages int    `json:"max_images"`
}

type inferenceResponse struct {
	Text string `json:"text"`
}

// HandleLLM handles POST /inference/llm requests.
func (h *InferenceHandler) HandleLLM(w http.ResponseWriter, r *http.Request) {
	const op = "api.inference_llm"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req llmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	text, err := h.deps.GenerateText(r.Context(), req.Model, req.Prompt)
	if err != nil {
		writeInferenceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, inferenceResponse{Text: text})
}

// HandleVLM handles POST /inference/vlm requests. The request names an
// image source: either a remote URL or a device whose stored frames
// should be analyzed.
func (h *InferenceHandler) HandleVLM(w http.ResponseWriter, r *http.Request) {
	const op = "api.inference_vlm"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req vlmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	hasURL := strings.TrimSpace(req.ImageURL) != ""
	hasDevice := strings.TrimSpace(req.DeviceID) != ""
	if hasURL == hasDevice {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	text, err := h.deps.GenerateVision(r.Context(), VisionRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		ImageURL:  req.ImageURL,
		DeviceID:  req.DeviceID,
		MaxImages: req.MaxImages,
	})
	if err != nil {
		writeInferenceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, inferenceResponse{Text: text})
}

// writeInferenceError maps inference failures onto HTTP statuses.
// Upstream errors keep their original status so callers can distinguish
// quota exhaustion from model availability.
func writeInferenceError(w http.ResponseWriter, op string, err error) {
	var upstream *genai.UpstreamError
	switch {
	case errors.As(err, &upstream):
		metrics.RecordInferenceError("upstream")
		writeError(w, upstream.Status, "upstream_error", Wrap(op, err))
	case errors.Is(err, genai.ErrNoAPIKey):
		metrics.RecordInferenceError("not_configured")
		writeError(w, http.StatusInternalServerError, "not_configured", Wrap(op, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, imagery.ErrImageFetch):
		metrics.RecordInferenceError("image_fetch")
		writeError(w, http.StatusBadRequest, "image_fetch_failed", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, genai.ErrUpstreamUnavailable),
		errors.Is(err, genai.ErrEmptyResponse),
		errors.Is(err, genai.ErrGenerationFailed):
		metrics.RecordInferenceError("generation")
		writeError(w, http.StatusBadGateway, "generation_failed", Wrap(op, err))
	default:
		metrics.RecordInferenceError("internal")
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
