package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNSClient is the subset of apns2.Client used by the sender, extracted so
// tests can substitute a fake.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNSConfig carries the credentials for token-based APNs authentication.
type APNSConfig struct {
	KeyID      string
	TeamID     string
	BundleID   string
	PrivateKey string // .p8 content, armored or bare base64
	Production bool
}

// APNSSender delivers alerts through the APNs HTTP/2 API. The underlying
// client signs an ES256 JWT from the .p8 key and refreshes it as needed, so
// every dispatch carries a currently-valid bearer.
type APNSSender struct {
	client APNSClient
	topic  string
	logger *slog.Logger
}

// NewAPNSSender parses the key material immediately so misconfiguration is
// surfaced at startup instead of on the first dispatch.
func NewAPNSSender(cfg APNSConfig, logger *slog.Logger) (*APNSSender, error) {
	if cfg.KeyID == "" || cfg.TeamID == "" || cfg.BundleID == "" {
		return nil, fmt.Errorf("apns config incomplete: key id, team id and bundle id are required")
	}
	pemKey, err := NormalizePEM(cfg.PrivateKey, "PRIVATE KEY")
	if err != nil {
		return nil, fmt.Errorf("normalize apns key: %w", err)
	}
	authKey, err := token.AuthKeyFromBytes(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse apns p8 key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &APNSSender{
		client: client,
		topic:  cfg.BundleID,
		logger: logger.With("component", "apns"),
	}, nil
}

func (s *APNSSender) Send(ctx context.Context, deviceToken string, msg Message) error {
	sound := msg.Sound
	if sound == "" {
		sound = "default"
	}

	p := payload.NewPayload().
		AlertTitle(msg.Title).
		AlertBody(msg.Body).
		Sound(sound).
		MutableContent().
		ContentAvailable()
	if msg.Badge != nil {
		p = p.Badge(*msg.Badge)
	}
	// Custom data is merged at the JSON top level alongside aps, values
	// untouched, so native listeners can read data.X directly.
	for k, v := range msg.Data {
		p = p.Custom(k, v)
	}

	res, err := s.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		PushType:    apns2.PushTypeAlert,
		Priority:    apns2.PriorityHigh,
		Expiration:  time.Unix(0, 0),
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("apns push: %w", err)
	}
	if res.Sent() {
		return nil
	}

	switch {
	case res.StatusCode == http.StatusGone,
		res.Reason == apns2.ReasonBadDeviceToken,
		res.Reason == apns2.ReasonUnregistered,
		res.Reason == apns2.ReasonDeviceTokenNotForTopic:
		return fmt.Errorf("%w: apns %d %s", ErrInvalidToken, res.StatusCode, res.Reason)
	}
	// Other rejections (TopicDisallowed, PayloadEmpty, ...) usually mean our
	// configuration is wrong, not the token.
	s.logger.Warn("apns rejected notification", "status", res.StatusCode, "reason", res.Reason)
	return fmt.Errorf("apns rejected notification: status %d reason %s", res.StatusCode, res.Reason)
}
