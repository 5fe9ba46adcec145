package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bandwithpush/internal/domain"
	"bandwithpush/internal/service"
)

type stubTokenRegistry struct {
	t *testing.T

	upsertFunc     func(context.Context, string, string, domain.Platform, time.Time) (domain.PushToken, error)
	deactivateFunc func(context.Context, string, string) error
}

func (s *stubTokenRegistry) UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.PushToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	s.t.Fatalf("UpsertToken called unexpectedly")
	return domain.PushToken{}, errors.New("not stubbed")
}

func (s *stubTokenRegistry) DeactivateTokenByValue(ctx context.Context, userID, token string) error {
	if s.deactivateFunc != nil {
		return s.deactivateFunc(ctx, userID, token)
	}
	s.t.Fatalf("DeactivateTokenByValue called unexpectedly")
	return errors.New("not stubbed")
}

func TestTokenRegisterRejectsInvalidPlatform(t *testing.T) {
	api := &api{
		logger:   testLogger(),
		tokenSvc: &service.TokenService{Tokens: &stubTokenRegistry{t: t}},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/push/tokens",
		strings.NewReader(`{"user_id":"u1","token":"tok","platform":"blackberry"}`))
	rr := httptest.NewRecorder()

	api.handleTokenRegister(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var resp errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != "validation_error" {
		t.Fatalf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestTokenRegisterUpserts(t *testing.T) {
	called := false
	api := &api{
		logger: testLogger(),
		tokenSvc: &service.TokenService{
			Tokens: &stubTokenRegistry{
				t: t,
				upsertFunc: func(_ context.Context, userID, token string, platform domain.Platform, _ time.Time) (domain.PushToken, error) {
					called = true
					if userID != "u1" || token != "tok" || platform != domain.PlatformAndroid {
						t.Fatalf("unexpected args: %s %s %s", userID, token, platform)
					}
					return domain.PushToken{ID: "t1", Token: token, Platform: platform, IsActive: true}, nil
				},
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/push/tokens",
		strings.NewReader(`{"user_id":"u1","token":"tok","platform":"android"}`))
	rr := httptest.NewRecorder()

	api.handleTokenRegister(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d, body %s", rr.Code, rr.Body.String())
	}
	if !called {
		t.Fatalf("expected upsert to be called")
	}
	var resp registerTokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "t1" || !resp.IsActive {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTokenUnregister(t *testing.T) {
	deactivated := false
	api := &api{
		logger: testLogger(),
		tokenSvc: &service.TokenService{
			Tokens: &stubTokenRegistry{
				t: t,
				deactivateFunc: func(_ context.Context, userID, token string) error {
					deactivated = true
					if userID != "u1" || token != "tok" {
						t.Fatalf("unexpected args: %s %s", userID, token)
					}
					return nil
				},
			},
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/push/tokens?user_id=u1&token=tok", nil)
	rr := httptest.NewRecorder()

	api.handleTokenUnregister(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if !deactivated {
		t.Fatalf("expected deactivation")
	}
}
