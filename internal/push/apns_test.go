package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPNSClient struct {
	pushFunc func(n *apns2.Notification) (*apns2.Response, error)
	got      *apns2.Notification
}

func (s *stubAPNSClient) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	s.got = n
	return s.pushFunc(n)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPNSSender(client APNSClient) *APNSSender {
	return &APNSSender{
		client: client,
		topic:  "com.bandwith.app",
		logger: discardLogger(),
	}
}

func TestNewAPNSSenderParsesEscapedKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	armored := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	sender, err := NewAPNSSender(APNSConfig{
		KeyID:      "KEY123",
		TeamID:     "TEAM456",
		BundleID:   "com.bandwith.app",
		PrivateKey: strings.ReplaceAll(armored, "\n", `\n`),
	}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "com.bandwith.app", sender.topic)
}

func TestNewAPNSSenderRejectsBadConfig(t *testing.T) {
	_, err := NewAPNSSender(APNSConfig{KeyID: "K", TeamID: "T"}, discardLogger())
	assert.Error(t, err, "missing bundle id")

	_, err = NewAPNSSender(APNSConfig{
		KeyID:      "K",
		TeamID:     "T",
		BundleID:   "com.bandwith.app",
		PrivateKey: "notakey!!",
	}, discardLogger())
	assert.Error(t, err, "unparseable key")
}

func TestAPNSSendPayloadShape(t *testing.T) {
	client := &stubAPNSClient{
		pushFunc: func(*apns2.Notification) (*apns2.Response, error) {
			return &apns2.Response{StatusCode: http.StatusOK}, nil
		},
	}
	sender := newTestAPNSSender(client)

	badge := 3
	err := sender.Send(context.Background(), "device-1", Message{
		Title: "New quote",
		Body:  "Venue sent a quote",
		Badge: &badge,
		Data:  map[string]any{"count": float64(5), "chatId": "c-9"},
	})
	require.NoError(t, err)
	require.NotNil(t, client.got)

	assert.Equal(t, "device-1", client.got.DeviceToken)
	assert.Equal(t, "com.bandwith.app", client.got.Topic)
	assert.Equal(t, apns2.PushTypeAlert, client.got.PushType)
	assert.Equal(t, apns2.PriorityHigh, client.got.Priority)
	assert.Equal(t, int64(0), client.got.Expiration.Unix())

	raw, err := json.Marshal(client.got.Payload)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	aps, ok := body["aps"].(map[string]any)
	require.True(t, ok, "missing aps")
	alert, ok := aps["alert"].(map[string]any)
	require.True(t, ok, "missing alert")
	assert.Equal(t, "New quote", alert["title"])
	assert.Equal(t, "Venue sent a quote", alert["body"])
	assert.Equal(t, float64(3), aps["badge"])
	assert.Equal(t, "default", aps["sound"])
	assert.Equal(t, float64(1), aps["mutable-content"])
	assert.Equal(t, float64(1), aps["content-available"])

	// Custom data is merged at the top level, numbers preserved.
	assert.Equal(t, float64(5), body["count"])
	assert.Equal(t, "c-9", body["chatId"])
}

func TestAPNSSendClassifiesDeadTokens(t *testing.T) {
	cases := []struct {
		name string
		resp *apns2.Response
	}{
		{"gone", &apns2.Response{StatusCode: http.StatusGone, Reason: apns2.ReasonUnregistered}},
		{"bad device token", &apns2.Response{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonBadDeviceToken}},
		{"wrong topic", &apns2.Response{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonDeviceTokenNotForTopic}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := newTestAPNSSender(&stubAPNSClient{
				pushFunc: func(*apns2.Notification) (*apns2.Response, error) { return tc.resp, nil },
			})
			err := sender.Send(context.Background(), "dead-token", Message{Title: "t", Body: "b"})
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAPNSSendTransientFailures(t *testing.T) {
	sender := newTestAPNSSender(&stubAPNSClient{
		pushFunc: func(*apns2.Notification) (*apns2.Response, error) {
			return &apns2.Response{StatusCode: http.StatusInternalServerError, Reason: apns2.ReasonInternalServerError}, nil
		},
	})
	err := sender.Send(context.Background(), "token-1", Message{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)

	sender = newTestAPNSSender(&stubAPNSClient{
		pushFunc: func(*apns2.Notification) (*apns2.Response, error) {
			return nil, errors.New("connection refused")
		},
	})
	err = sender.Send(context.Background(), "token-1", Message{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}
