// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/avian-io/roost/internal/adapters/repository"
)

// DevicesHandler handles device registry requests.
type DevicesHandler struct {
	deps Dependencies
}

// NewDevicesHandler creates a new devices handler.
func NewDevicesHandler(deps Dependencies) *DevicesHandler {
	return &DevicesHandler{deps: deps}
}

type createDeviceRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

func (r *createDeviceRequest) validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// HandleCreate handles POST /devices/create requests.
func (h *DevicesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_device"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	device, err := h.deps.RegisterDevice(r.Context(), user.ID, req.DeviceID, req.Name)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "duplicate_device", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

// HandleList handles GET /devices/list requests.
func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_devices"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	devices, err := h.deps.ListDevices(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// HandleDelete handles DELETE /devices/delete/{device_id} requests.
func (h *DevicesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_device"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	deviceID := pathSuffix(r.URL.Path, "/devices/delete/")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrMissingDeviceID))
		return
	}
	if err := h.deps.RemoveDevice(r.Context(), user.ID, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "device_id": deviceID})
}

// HandleData handles GET /devices/get/{device_id}/data requests.
func (h *DevicesHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	const op = "api.device_data"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	rest := pathSuffix(r.URL.Path, "/devices/get/")
	deviceID := strings.TrimSuffix(rest, "/data")
	if deviceID == "" || deviceID == rest {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrMissingDeviceID))
		return
	}
	records, err := h.deps.DeviceTelemetry(r.Context(), user.ID, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// pathSuffix strips prefix from path and trims any trailing slash.
func pathSuffix(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return ""
	}
	return strings.Trim(rest, "/")
}
