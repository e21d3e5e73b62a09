package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
)

type tokenResponse struct {
	AccessToken  string                `json:"access_token"`
	RefreshToken string                `json:"refresh_token"`
	TokenType    string                `json:"token_type"`
	ExpiresIn    int64                 `json:"expires_in"`
	Profile      *models.PublicProfile `json:"profile,omitempty"`
	RedirectTo   string                `json:"redirect_to,omitempty"`
}

// handleLogin starts the OIDC flow and redirects the browser to the IDP.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	redirectTo := r.URL.Query().Get("redirect_to")

	authURL, err := h.auth.InitiateLogin(r.Context(), redirectTo)
	if err != nil {
		h.logger.Error(r.Context(), "initiating login", "error", err)
		writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// handleCallback completes the flow and hands the token pair to the client.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// The provider reports a denied or failed authorization here instead
	// of a code.
	if errCode := q.Get("error"); errCode != "" {
		h.logger.Warn(r.Context(), "provider returned error",
			"code", errCode, "description", q.Get("error_description"))
		writeError(w, common.ErrTokenExchange)
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		writeError(w, common.ErrInvalidState)
		return
	}

	result, err := h.auth.HandleCallback(r.Context(), state, code)
	if err != nil {
		h.logger.Warn(r.Context(), "login callback failed", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		Profile:      &result.Profile,
		RedirectTo:   result.RedirectTo,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, common.ErrValidation)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, common.ErrValidation)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	if err := h.auth.LogoutAll(r.Context(), identity.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, identity.Profile())
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	if err := h.auth.DeleteAccount(r.Context(), identity.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var prefs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	if err := h.auth.UpdatePreferences(r.Context(), identity.ID, prefs); err != nil {
		writeError(w, err)
		return
	}

	identity.Preferences = prefs
	writeJSON(w, http.StatusOK, identity.Profile())
}
