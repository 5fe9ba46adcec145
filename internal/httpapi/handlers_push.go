package httpapi

import (
	"errors"
	"net/http"

	"bandwithpush/internal/domain"
)

type dispatchRequest struct {
	UserID      string         `json:"user_id"`
	UserIDs     []string       `json:"user_ids"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data"`
	Badge       *int           `json:"badge"`
	Sound       string         `json:"sound"`
	CreateInApp *bool          `json:"create_in_app"`
}

type dispatchResponse struct {
	Success bool                    `json:"success"`
	Sent    int                     `json:"sent"`
	Failed  int                     `json:"failed"`
	Results []dispatchResultPayload `json:"results"`
}

type dispatchResultPayload struct {
	TokenID  string `json:"token_id"`
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type dispatchFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeDispatchError uses the flat {success,error} shape the BandWith clients
// already parse, rather than the envelope used by the token endpoints.
func writeDispatchError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, dispatchFailure{Success: false, Error: message})
}

func (a *api) handlePushDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req); err != nil {
		writeDispatchError(w, http.StatusBadRequest, "invalid json")
		return
	}

	userIDs := req.UserIDs
	if req.UserID != "" {
		userIDs = append([]string{req.UserID}, userIDs...)
	}

	createInApp := true
	if req.CreateInApp != nil {
		createInApp = *req.CreateInApp
	}

	summary, err := a.dispatchSvc.Dispatch(r.Context(), domain.DispatchRequest{
		UserIDs:     userIDs,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		Badge:       req.Badge,
		Sound:       req.Sound,
		CreateInApp: createInApp,
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeDispatchError(w, http.StatusBadRequest, validationMessage(verr))
			return
		}
		a.logger.Error("dispatch failed", "err", err)
		writeDispatchError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	resp := dispatchResponse{
		Success: true,
		Sent:    summary.Sent,
		Failed:  summary.Failed,
		Results: make([]dispatchResultPayload, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		resp.Results = append(resp.Results, dispatchResultPayload{
			TokenID:  res.TokenID,
			Platform: string(res.Platform),
			Success:  res.Success,
			Error:    res.Error,
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}

func validationMessage(verr *domain.ValidationError) string {
	_, missingTitle := verr.Fields["title"]
	_, missingBody := verr.Fields["body"]
	if missingTitle || missingBody {
		return "Missing title or body"
	}
	if _, ok := verr.Fields["recipients"]; ok {
		return "Missing recipients"
	}
	return verr.Error()
}
