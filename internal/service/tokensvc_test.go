package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bandwithpush/internal/domain"
)

type stubTokenRegistryStore struct {
	upsertFunc     func(context.Context, string, string, domain.Platform, time.Time) (domain.PushToken, error)
	deactivateFunc func(context.Context, string, string) error
}

func (s *stubTokenRegistryStore) UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.PushToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	return domain.PushToken{}, errors.New("upsert not stubbed")
}

func (s *stubTokenRegistryStore) DeactivateTokenByValue(ctx context.Context, userID, token string) error {
	if s.deactivateFunc != nil {
		return s.deactivateFunc(ctx, userID, token)
	}
	return errors.New("deactivate not stubbed")
}

func TestTokenServiceRegisterValidation(t *testing.T) {
	svc := &TokenService{Tokens: &stubTokenRegistryStore{}}

	if _, err := svc.RegisterToken(context.Background(), "u1", "", "ios"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty token, got %v", err)
	}
	if _, err := svc.RegisterToken(context.Background(), "", "tok", "ios"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty user, got %v", err)
	}
	if _, err := svc.RegisterToken(context.Background(), "u1", "tok", "windows"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for bad platform, got %v", err)
	}
}

func TestTokenServiceRegisterUpserts(t *testing.T) {
	called := false
	svc := &TokenService{
		Tokens: &stubTokenRegistryStore{
			upsertFunc: func(_ context.Context, userID, token string, platform domain.Platform, _ time.Time) (domain.PushToken, error) {
				called = true
				if userID != "u1" || token != "tok" || platform != domain.PlatformWeb {
					t.Fatalf("unexpected args: %s %s %s", userID, token, platform)
				}
				return domain.PushToken{ID: "t1", Token: token, Platform: platform, IsActive: true}, nil
			},
		},
	}

	out, err := svc.RegisterToken(context.Background(), "u1", " tok ", "WEB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called || !out.IsActive {
		t.Fatalf("expected upsert with active token, got %+v", out)
	}
}

func TestTokenServiceUnregister(t *testing.T) {
	deactivated := false
	svc := &TokenService{
		Tokens: &stubTokenRegistryStore{
			deactivateFunc: func(_ context.Context, userID, token string) error {
				deactivated = true
				if userID != "u1" || token != "tok" {
					t.Fatalf("unexpected args: %s %s", userID, token)
				}
				return nil
			},
		},
	}

	if err := svc.UnregisterToken(context.Background(), "u1", "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deactivated {
		t.Fatalf("expected deactivation")
	}

	if err := svc.UnregisterToken(context.Background(), "u1", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
