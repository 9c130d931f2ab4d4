package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rollcall/rollcall/internal/archive"
	rcerrors "github.com/rollcall/rollcall/internal/errors"
	"github.com/rollcall/rollcall/internal/registry"
	"github.com/rollcall/rollcall/internal/roster"
)

// PrincipalHeader carries the caller's principal identifier. The transport
// in front of this API is expected to have authenticated it already.
const PrincipalHeader = "X-Rollcall-Principal"

// CreateEventResponse is the response to POST /v1/events.
type CreateEventResponse struct {
	EventID   int64  `json:"event_id"`
	RequestID string `json:"request_id,omitempty"`
}

// CheckinRequest is the body of POST /v1/events/{id}/checkins.
type CheckinRequest struct {
	ParticipantID int64  `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	At            string `json:"at,omitempty"` // RFC 3339; defaults to now
}

// CheckinResponse is the response to POST /v1/events/{id}/checkins.
type CheckinResponse struct {
	Outcome   string `json:"outcome"`
	RequestID string `json:"request_id,omitempty"`
}

// ArchiveResponse is the response to POST /v1/events/{id}/archive.
type ArchiveResponse struct {
	ObjectPath string `json:"object_path"`
	RequestID  string `json:"request_id,omitempty"`
}

// Handler serves the Rollcall HTTP API.
type Handler struct {
	reg      registry.Registry
	archiver *archive.Archiver // nil when archival is disabled
}

// NewHandler creates the API handler. archiver may be nil.
func NewHandler(reg registry.Registry, archiver *archive.Archiver) *Handler {
	return &Handler{reg: reg, archiver: archiver}
}

// Routes returns the API mux with the default middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/events", h.handleCreateEvent)
	mux.HandleFunc("POST /v1/events/{id}/checkins", h.handleCheckin)
	mux.HandleFunc("GET /v1/events/{id}/export", h.handleExport)
	mux.HandleFunc("POST /v1/events/{id}/archive", h.handleArchive)
	return DefaultMiddleware()(mux)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	owner, ok := principal(w, r, requestID)
	if !ok {
		return
	}

	eventID, err := h.reg.CreateEvent(r.Context(), owner)
	if err != nil {
		writeRegistryError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusCreated, CreateEventResponse{EventID: eventID, RequestID: requestID})
}

func (h *Handler) handleCheckin(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	eventID, ok := pathEventID(w, r, requestID)
	if !ok {
		return
	}

	var req CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.ParticipantID == 0 {
		writeError(w, http.StatusBadRequest, "participant_id is required", requestID)
		return
	}

	at := time.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid at timestamp: %v", err), requestID)
			return
		}
		at = parsed
	}

	outcome, err := h.reg.RecordCheckin(r.Context(), eventID, req.ParticipantID, req.DisplayName, at)
	if err != nil {
		writeRegistryError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, CheckinResponse{Outcome: outcome.String(), RequestID: requestID})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	eventID, ok := pathEventID(w, r, requestID)
	if !ok {
		return
	}
	requester, ok := principal(w, r, requestID)
	if !ok {
		return
	}

	path, err := h.reg.GetExportPath(r.Context(), eventID, requester)
	if err != nil {
		writeRegistryError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("event-%d-%s", eventID, roster.FileName)))
	http.ServeFile(w, r, path)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if h.archiver == nil {
		writeError(w, http.StatusNotImplemented, "archival is not enabled", requestID)
		return
	}

	eventID, ok := pathEventID(w, r, requestID)
	if !ok {
		return
	}
	requester, ok := principal(w, r, requestID)
	if !ok {
		return
	}

	objectPath, err := h.archiver.Archive(r.Context(), eventID, requester)
	if err != nil {
		writeRegistryError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, ArchiveResponse{ObjectPath: objectPath, RequestID: requestID})
}

// principal extracts the caller's principal id from the request header.
func principal(w http.ResponseWriter, r *http.Request, requestID string) (int64, bool) {
	raw := r.Header.Get(PrincipalHeader)
	if raw == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s header is required", PrincipalHeader), requestID)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s header", PrincipalHeader), requestID)
		return 0, false
	}
	return id, true
}

// pathEventID parses the {id} path segment.
func pathEventID(w http.ResponseWriter, r *http.Request, requestID string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id", requestID)
		return 0, false
	}
	return id, true
}

// writeRegistryError maps typed registry errors onto HTTP statuses. The
// forbidden response never names the real owner, and store failures are a
// generic message.
func writeRegistryError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case rcerrors.IsNotFound(err):
		writeError(w, http.StatusNotFound, "event not found", requestID)
	case rcerrors.IsForbidden(err):
		writeError(w, http.StatusForbidden, "you do not have access to this event", requestID)
	case rcerrors.IsInconsistent(err):
		writeError(w, http.StatusInternalServerError, "export temporarily unavailable", requestID)
	default:
		writeError(w, http.StatusInternalServerError, "internal server error", requestID)
	}
}
