package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bandwithpush/internal/domain"
	"bandwithpush/internal/push"

	"golang.org/x/sync/errgroup"
)

type PushTokensStore interface {
	ListActiveTokens(ctx context.Context, userIDs []string) ([]domain.PushToken, error)
	DeactivateToken(ctx context.Context, tokenID string) error
}

type NotificationsStore interface {
	InsertNotifications(ctx context.Context, rows []domain.InAppNotification) error
}

// DispatchService fans one notification out to every active device token of
// the target recipients, through the sender matching each token's platform.
type DispatchService struct {
	Tokens        PushTokensStore
	Notifications NotificationsStore
	Senders       map[domain.Platform]push.Sender
	Logger        *slog.Logger

	// MaxConcurrent caps simultaneous outbound provider calls per dispatch.
	MaxConcurrent int
	// SendTimeout bounds each individual provider call.
	SendTimeout time.Duration
}

// Dispatch runs one full dispatch pass: validate, write in-app rows
// (best-effort), load tokens, fan out, invalidate dead tokens, aggregate.
//
// Per-token and per-provider failures are isolated: every token gets its own
// delivery attempt, and no failure cancels the rest of the batch. The only
// error returns are request validation and the token registry read.
func (s *DispatchService) Dispatch(ctx context.Context, req domain.DispatchRequest) (domain.DispatchSummary, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userIDs := dedupeNonEmpty(req.UserIDs)
	fields := map[string]string{}
	if len(userIDs) == 0 {
		fields["recipients"] = "required"
	}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(req.Body) == "" {
		fields["body"] = "required"
	}
	if len(fields) > 0 {
		return domain.DispatchSummary{}, domain.NewValidationError(fields)
	}

	// In-app rows are written for every recipient whether or not any push
	// token exists. Push delivery is the primary goal; a failed insert is
	// logged and the dispatch continues.
	if req.CreateInApp && s.Notifications != nil {
		rows := buildInAppRows(userIDs, req)
		if err := s.Notifications.InsertNotifications(ctx, rows); err != nil {
			logger.Error("in-app notification insert failed", "err", err, "recipients", len(userIDs))
		}
	}

	tokens, err := s.Tokens.ListActiveTokens(ctx, userIDs)
	if err != nil {
		return domain.DispatchSummary{}, err
	}
	if len(tokens) == 0 {
		logger.Info("dispatch resolved no active tokens", "recipients", len(userIDs))
		return domain.DispatchSummary{Results: []domain.DispatchResult{}}, nil
	}

	msg := push.Message{
		Title: req.Title,
		Body:  req.Body,
		Badge: req.Badge,
		Sound: req.Sound,
		Data:  req.Data,
	}

	limit := s.MaxConcurrent
	if limit <= 0 {
		limit = 16
	}

	results := make([]domain.DispatchResult, len(tokens))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, tok := range tokens {
		g.Go(func() error {
			results[i] = s.sendOne(ctx, tok, msg)
			return nil
		})
	}
	// Tasks never return errors; Wait is a plain join of the whole batch.
	_ = g.Wait()

	summary := domain.DispatchSummary{Results: results}
	for _, r := range results {
		if r.Success {
			summary.Sent++
			continue
		}
		summary.Failed++
		if r.Error == domain.DispatchErrInvalidToken {
			if err := s.Tokens.DeactivateToken(ctx, r.TokenID); err != nil {
				logger.Error("token invalidation failed", "err", err, "token_id", r.TokenID)
			}
		}
	}

	logger.Info("dispatch complete",
		"recipients", len(userIDs),
		"tokens", len(tokens),
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (s *DispatchService) sendOne(ctx context.Context, tok domain.PushToken, msg push.Message) domain.DispatchResult {
	result := domain.DispatchResult{TokenID: tok.ID, Platform: tok.Platform}

	sender := s.Senders[tok.Platform]
	if sender == nil {
		result.Error = domain.DispatchErrProviderUnavailable
		return result
	}

	timeout := s.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := sender.Send(sendCtx, tok.Token, msg)
	switch {
	case err == nil:
		result.Success = true
	case errors.Is(err, push.ErrInvalidToken):
		result.Error = domain.DispatchErrInvalidToken
	default:
		result.Error = domain.DispatchErrProvider
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("push send failed", "err", err, "token_id", tok.ID, "platform", tok.Platform)
	}
	return result
}

func buildInAppRows(userIDs []string, req domain.DispatchRequest) []domain.InAppNotification {
	notifType := "general"
	if t, ok := req.Data["type"].(string); ok && t != "" {
		notifType = t
	}

	data := normalizeInAppData(req.Data)
	bandID, _ := data["band_id"].(string)
	actionURL, _ := data["action_url"].(string)

	rows := make([]domain.InAppNotification, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, domain.InAppNotification{
			UserID:    userID,
			Type:      notifType,
			Title:     req.Title,
			Body:      req.Body,
			Data:      data,
			Read:      false,
			BandID:    bandID,
			ActionURL: actionURL,
		})
	}
	return rows
}

// normalizeInAppData copies the data map, folding the client-side chatId
// spelling into chat_id so the in-app feed can rely on one key.
func normalizeInAppData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	if _, ok := out["chat_id"]; !ok {
		if v, ok := out["chatId"]; ok {
			out["chat_id"] = v
		}
	}
	return out
}

func dedupeNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
