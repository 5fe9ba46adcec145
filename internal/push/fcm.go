package push

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMConfig carries the service-account credentials for the FCM HTTP v1 API.
type FCMConfig struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string // RSA key PEM, armored or bare base64
	ChannelID   string
}

// FCMSender delivers messages through the FCM HTTP v1 API. The token source
// signs an RS256 service-account JWT and exchanges it for an OAuth2 bearer at
// Google's token endpoint, refreshing before expiry.
type FCMSender struct {
	projectID   string
	channelID   string
	tokenSource oauth2.TokenSource
	client      *http.Client
}

func NewFCMSender(ctx context.Context, cfg FCMConfig) (*FCMSender, error) {
	if cfg.ProjectID == "" || cfg.ClientEmail == "" {
		return nil, errors.New("fcm config incomplete: project id and client email are required")
	}
	pemKey, err := NormalizePEM(cfg.PrivateKey, "PRIVATE KEY")
	if err != nil {
		return nil, fmt.Errorf("normalize fcm key: %w", err)
	}
	if err := checkRSAPrivateKey(pemKey); err != nil {
		return nil, fmt.Errorf("parse fcm service-account key: %w", err)
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: pemKey,
		Scopes:     []string{fcmScope},
		TokenURL:   google.JWTTokenURL,
	}

	return &FCMSender{
		projectID:   cfg.ProjectID,
		channelID:   cfg.ChannelID,
		tokenSource: jwtCfg.TokenSource(ctx),
		client:      http.DefaultClient,
	}, nil
}

func (s *FCMSender) Send(ctx context.Context, deviceToken string, msg Message) error {
	sound := msg.Sound
	if sound == "" {
		sound = "default"
	}
	body := fcmRequest{
		Message: fcmMessage{
			Token: deviceToken,
			Notification: &fcmNotification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Android: &fcmAndroidConfig{
				Priority: "high",
				Notification: &fcmAndroidNotification{
					Sound:     sound,
					ChannelID: s.channelID,
				},
			},
			// FCM requires string-only data values.
			Data: coerceDataStrings(msg.Data),
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal fcm payload: %w", err)
	}

	accessToken, err := s.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("fcm access token: %w", err)
	}

	url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	rawBody, _ := io.ReadAll(resp.Body)
	return fcmErrorFromResponse(resp.StatusCode, rawBody)
}

func checkRSAPrivateKey(pemKey []byte) error {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return errors.New("no PEM block found")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return nil
	}
	return errors.New("not a PKCS8 or PKCS1 private key")
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Android      *fcmAndroidConfig `json:"android,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroidConfig struct {
	Priority     string                  `json:"priority,omitempty"`
	Notification *fcmAndroidNotification `json:"notification,omitempty"`
}

type fcmAndroidNotification struct {
	Sound     string `json:"sound,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

type fcmErrorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func fcmErrorFromResponse(status int, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("fcm send failed: status %d, empty response", status)
	}
	var resp fcmErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("fcm send failed: status %d: %s", status, string(body))
	}
	for _, detail := range resp.Error.Details {
		if detail.ErrorCode == "UNREGISTERED" {
			return fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error.Message)
		}
	}
	switch resp.Error.Status {
	case "UNREGISTERED", "INVALID_ARGUMENT":
		return fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error.Message)
	}
	return fmt.Errorf("fcm send failed: status %d: %s", status, resp.Error.Message)
}
