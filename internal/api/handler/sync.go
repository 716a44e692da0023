package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lleo5301/sports2-backend-sub005/internal/api/respond"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
	systemUser      = "api"
)

// syncResponse is the body returned by a single-entity trigger.
type syncResponse struct {
	Sync   string         `json:"sync"`
	Status string         `json:"status"`
	Result *syncer.Result `json:"result"`
	Error  *errorBody     `json:"error,omitempty"`
}

type errorBody struct {
	Kind    syncer.Kind `json:"kind"`
	Message string      `json:"message"`
}

// TriggerSync runs one synchronizer for a team.
// @Summary Run one synchronizer
// @Tags sync
// @Produce json
// @Param teamID path int true "Local team id"
// @Param kind path string true "Sync type" Enums(roster, schedule, stats, record, season_stats, career_stats, player_details, photos, videos, press_releases, historical_stats, live_stats)
// @Success 200 {object} syncResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Failure 502 {object} syncResponse
// @Router /api/v1/teams/{teamID}/sync/{kind} [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}
	kind := chi.URLParam(r, "kind")

	res, err := h.Syncer.Sync(detach(r), kind, teamID, userID(r))
	if err != nil && writePrecondition(w, err) {
		return
	}

	body := syncResponse{Sync: kind, Result: res, Status: store.SyncCompleted}
	status := http.StatusOK
	switch {
	case err != nil:
		body.Status = store.SyncFailed
		body.Error = &errorBody{Kind: syncer.Classify(err), Message: err.Error()}
		status = http.StatusBadGateway
		h.Logger.Warn("Sync trigger failed", "team_id", teamID, "sync", kind, "error", err)
	case res != nil && res.Failed() > 0:
		body.Status = store.SyncPartial
	}
	respond.WriteJSONObject(w, status, body)
}

// TriggerSyncAll runs every synchronizer for a team.
// @Summary Run a full sync
// @Tags sync
// @Produce json
// @Param teamID path int true "Local team id"
// @Success 200 {object} syncer.AllResult
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /api/v1/teams/{teamID}/sync [post]
func (h *Handler) TriggerSyncAll(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}

	all, err := h.Syncer.SyncAll(detach(r), teamID, userID(r))
	if err != nil {
		if writePrecondition(w, err) {
			return
		}
		h.Logger.Error("Full sync aborted", "team_id", teamID, "error", err)
		respond.WriteErrorDetail(w, http.StatusBadGateway, "SYNC_FAILED", "Full sync could not start", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, all)
}

// ListSyncLogs returns a team's most recent sync logs.
// @Summary List sync logs
// @Tags sync
// @Produce json
// @Param teamID path int true "Local team id"
// @Param limit query int false "Max rows (default 20, max 100)"
// @Success 200 {array} store.SyncLog
// @Router /api/v1/teams/{teamID}/sync/logs [get]
func (h *Handler) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}

	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := h.Logs.ListSyncLogs(r.Context(), teamID, limit)
	if err != nil {
		h.Logger.Error("List sync logs failed", "team_id", teamID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not load sync logs")
		return
	}
	if logs == nil {
		logs = []store.SyncLog{}
	}
	respond.WriteJSONObject(w, http.StatusOK, logs)
}

// GetSyncLog returns one sync log.
// @Summary Get a sync log
// @Tags sync
// @Produce json
// @Param logID path string true "Sync log id"
// @Success 200 {object} store.SyncLog
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/sync/logs/{logID} [get]
func (h *Handler) GetSyncLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "logID"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_LOG_ID", "logID must be a UUID")
		return
	}

	l, err := h.Logs.GetSyncLog(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Sync log not found")
		return
	}
	if err != nil {
		h.Logger.Error("Get sync log failed", "log_id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not load sync log")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, l)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// writePrecondition answers errors raised before a run starts. It reports
// false for errors that belong in a run summary.
func writePrecondition(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, syncer.ErrUnknownSync):
		respond.WriteError(w, http.StatusNotFound, "UNKNOWN_SYNC_TYPE", err.Error())
	case errors.Is(err, syncer.ErrTeamNotFound):
		respond.WriteError(w, http.StatusNotFound, "TEAM_NOT_FOUND", "Team not found")
	case errors.Is(err, syncer.ErrSyncInProgress):
		respond.WriteError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A sync is already running for this team")
	case errors.Is(err, syncer.ErrNotConfigured):
		respond.WriteErrorDetail(w, http.StatusBadRequest, "NOT_CONFIGURED", "Provider integration is not configured", err.Error())
	case errors.Is(err, syncer.ErrAuthenticationFailed):
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "AUTHENTICATION_FAILED", "Provider rejected the stored credentials", err.Error())
	default:
		return false
	}
	return true
}

func teamParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil || id <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_TEAM_ID", "teamID must be a positive integer")
		return 0, false
	}
	return id, true
}

// userID is the initiator recorded on sync logs. Upstream auth middleware
// sets X-User-ID.
func userID(r *http.Request) string {
	if u := r.Header.Get("X-User-ID"); u != "" {
		return u
	}
	return systemUser
}

// detach keeps request values but lets a run outlive the client connection.
// A started sync always finishes its sequence and finalizes its log.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
