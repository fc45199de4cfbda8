package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-cameras/internal/audit"
	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
)

// CameraListResponse is the body of GET /cameras.
type CameraListResponse struct {
	Cameras []camera.DeviceView `json:"cameras"`
	Count   int                 `json:"count"`
}

// SetAttributeRequest is the body of PUT /cameras/{id}/attributes/{name}.
type SetAttributeRequest struct {
	Value *float64 `json:"value"`
}

// CommandRequest is the body of POST /cameras/{id}/commands.
type CommandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AuthRequest is the body of PUT /cameras/{id}/auth. An empty mode clears
// the operator pin and returns the camera to its detected scheme.
type AuthRequest struct {
	Mode string `json:"mode"`
}

// DiscoveryRequest is the body of POST /discovery.
type DiscoveryRequest struct {
	Devices []camera.RawDeviceInfo `json:"devices"`
}

func (s *Server) handleListCameras(w http.ResponseWriter, _ *http.Request) {
	views := s.cameras.Devices()
	writeJSON(w, http.StatusOK, CameraListResponse{Cameras: views, Count: len(views)})
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := s.cameras.Device(id)
	if !ok {
		writeNotFound(w, "camera not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSetAttribute writes one attribute through the camera's write path
// and returns the camera as it stands afterwards.
func (s *Server) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := strings.ToUpper(chi.URLParam(r, "name"))

	var req SetAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	cmd := camera.SetAttribute{Attribute: name, Value: *req.Value}
	s.execute(w, r, id, cmd)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	cmd, err := camera.ParseCommand(req.Command, req.Parameters)
	if err != nil {
		writeCameraError(w, err)
		return
	}
	s.execute(w, r, id, cmd)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, id string, cmd camera.Command) {
	err := s.cameras.Execute(r.Context(), id, cmd)
	s.record(r, id, cmd.Name(), commandDetails(cmd), err)
	if err != nil {
		s.logger.Warn("camera command failed",
			"device_id", id,
			"command", cmd.Name(),
			"error", err,
		)
		writeCameraError(w, err)
		return
	}

	view, ok := s.cameras.Device(id)
	if !ok {
		writeNotFound(w, "camera not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetAuth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	var mode *camera.AuthMode
	if strings.TrimSpace(req.Mode) != "" {
		parsed, err := camera.ParseAuthMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		mode = &parsed
	}

	err := s.cameras.SetAuthOverride(r.Context(), id, mode)
	s.record(r, id, audit.ActionAuthOverride, map[string]any{"mode": req.Mode}, err)
	if err != nil {
		writeCameraError(w, err)
		return
	}

	view, _ := s.cameras.Device(id)
	writeJSON(w, http.StatusOK, view)
}

// handleDiscovery merges an externally produced scan result, the HTTP
// counterpart of the discovery topic.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	var req DiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Devices) == 0 {
		writeBadRequest(w, "devices is required")
		return
	}

	summary := s.cameras.Reconcile(r.Context(), req.Devices)
	s.record(r, "", audit.ActionDiscovery, summaryDetails(summary), nil)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	summary := s.cameras.Rescan(r.Context())
	s.record(r, "", audit.ActionRescan, summaryDetails(summary), nil)
	writeJSON(w, http.StatusAccepted, summary)
}

// handleListAudit returns the recorded action trail, newest first.
// Query parameters: device_id, action, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		DeviceID: q.Get("device_id"),
		Action:   q.Get("action"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "invalid offset")
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) record(r *http.Request, deviceID, action string, details map[string]any, err error) {
	if s.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		details["request_id"] = id
	}
	if sub, ok := r.Context().Value(ctxKeySubject).(string); ok {
		details["subject"] = sub
	}
	s.audit.Record(r.Context(), deviceID, action, auditSourceAPI, details, err)
}

const auditSourceAPI = "api"

func commandDetails(cmd camera.Command) map[string]any {
	switch c := cmd.(type) {
	case camera.SetAttribute:
		return map[string]any{"attribute": c.Attribute, "value": c.Value}
	case camera.SetIRLED:
		return map[string]any{"mode": int(c.Mode)}
	case camera.GotoPreset:
		return map[string]any{"preset": c.Preset}
	default:
		return nil
	}
}

func summaryDetails(s camera.ReconcileSummary) map[string]any {
	return map[string]any{
		"created": s.Created,
		"updated": s.Updated,
		"skipped": s.Skipped,
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
