package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bandwithpush/internal/domain"
)

type TokenRegistryStore interface {
	UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.PushToken, error)
	DeactivateTokenByValue(ctx context.Context, userID, token string) error
}

// TokenService handles device token registration on behalf of the BandWith
// backend, which proxies client registrations through the service key.
type TokenService struct {
	Tokens TokenRegistryStore
	Now    func() time.Time
}

func (s *TokenService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.PushToken, error) {
	if s.Tokens == nil {
		return domain.PushToken{}, errors.New("token registry unavailable")
	}
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	fields := map[string]string{}
	if userID == "" {
		fields["user_id"] = "required"
	}
	if token == "" {
		fields["token"] = "required"
	}
	parsed, ok := domain.ParsePlatform(platform)
	if !ok {
		fields["platform"] = "must be ios, android or web"
	}
	if len(fields) > 0 {
		return domain.PushToken{}, domain.NewValidationError(fields)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	when := now().UTC().Truncate(time.Millisecond)
	return s.Tokens.UpsertToken(ctx, userID, token, parsed, when)
}

func (s *TokenService) UnregisterToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return errors.New("token registry unavailable")
	}
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return domain.NewValidationError(map[string]string{"user_id": "required", "token": "required"})
	}
	return s.Tokens.DeactivateTokenByValue(ctx, userID, token)
}
