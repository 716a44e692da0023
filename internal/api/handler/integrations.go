package handler

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lleo5301/sports2-backend-sub005/internal/api/respond"
	"github.com/lleo5301/sports2-backend-sub005/internal/credential"
)

// integrationRequest is the body of PUT .../integration.
type integrationRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	APIKey         string `json:"apiKey"`
	ProviderTeamID string `json:"providerTeamId"`
	SeasonID       string `json:"seasonId"`
	Verify         bool   `json:"verify"`
}

// PutIntegration stores or replaces a team's provider credentials.
// @Summary Configure provider integration
// @Tags integration
// @Accept json
// @Produce json
// @Param teamID path int true "Local team id"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /api/v1/teams/{teamID}/integration [put]
func (h *Handler) PutIntegration(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}

	var req integrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return
	}

	err := h.Integrations.Configure(r.Context(), teamID, credential.Settings{
		Username:       req.Username,
		Password:       req.Password,
		APIKey:         req.APIKey,
		ProviderTeamID: req.ProviderTeamID,
		SeasonID:       req.SeasonID,
		Verify:         req.Verify,
	})
	switch {
	case err == nil:
	case errors.Is(err, credential.ErrNotConfigured):
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_SETTINGS", "Integration settings are incomplete", err.Error())
		return
	case errors.Is(err, credential.ErrAuthenticationFailed):
		respond.WriteError(w, http.StatusUnprocessableEntity, "AUTHENTICATION_FAILED", "Provider rejected the credentials")
		return
	default:
		h.Logger.Error("Configure integration failed", "team_id", teamID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not save integration")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"teamId":         teamID,
		"providerTeamId": req.ProviderTeamID,
		"seasonId":       req.SeasonID,
		"configured":     true,
	})
}

// DeleteIntegration removes a team's provider credentials.
// @Summary Disconnect provider integration
// @Tags integration
// @Param teamID path int true "Local team id"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/teams/{teamID}/integration [delete]
func (h *Handler) DeleteIntegration(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamParam(w, r)
	if !ok {
		return
	}

	err := h.Integrations.Disconnect(r.Context(), teamID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, credential.ErrNotConfigured):
		respond.WriteError(w, http.StatusNotFound, "NOT_CONFIGURED", "Team has no provider integration")
	default:
		h.Logger.Error("Disconnect integration failed", "team_id", teamID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Could not remove integration")
	}
}
