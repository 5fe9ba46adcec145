package httpapi

import (
	"net/http"
	"strings"
)

type registerTokenRequest struct {
	UserID   string `json:"user_id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type registerTokenResponse struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
	IsActive bool   `json:"is_active"`
}

func (a *api) handleTokenRegister(w http.ResponseWriter, r *http.Request) {
	var req registerTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	out, err := a.tokenSvc.RegisterToken(r.Context(), req.UserID, req.Token, req.Platform)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, registerTokenResponse{
		ID:       out.ID,
		Token:    out.Token,
		Platform: string(out.Platform),
		IsActive: out.IsActive,
	})
}

func (a *api) handleTokenUnregister(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	if err := a.tokenSvc.UnregisterToken(r.Context(), userID, token); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
