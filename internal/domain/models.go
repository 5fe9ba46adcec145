package domain

import "time"

// Platform identifies which push provider a device token belongs to.
// iOS tokens are delivered through APNs; android and web tokens through FCM.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return Platform(s), true
	}
	return "", false
}

// PushToken is one registered delivery address for one device.
// Tokens are never deleted by the dispatcher; a token confirmed dead by its
// provider is soft-deactivated and can be reclaimed by re-registration.
type PushToken struct {
	ID        string
	UserID    string
	Token     string
	Platform  Platform
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DispatchRequest describes one notification dispatch. It is request-scoped
// and exists only for the duration of a single Dispatch call.
type DispatchRequest struct {
	UserIDs     []string
	Title       string
	Body        string
	Data        map[string]any
	Badge       *int
	Sound       string
	CreateInApp bool
}

// Classified per-token failure codes surfaced in DispatchResult.Error.
const (
	DispatchErrInvalidToken        = "invalid_token"
	DispatchErrProvider            = "provider_error"
	DispatchErrProviderUnavailable = "provider_unavailable"
)

// DispatchResult records the outcome of one per-token delivery attempt.
type DispatchResult struct {
	TokenID  string
	Platform Platform
	Success  bool
	Error    string
}

// DispatchSummary is the aggregate return contract of a dispatch call.
type DispatchSummary struct {
	Sent    int
	Failed  int
	Results []DispatchResult
}

// InAppNotification is a row written to the in-app notification sink.
// The sink is owned by the BandWith application; the dispatcher only inserts.
type InAppNotification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Body      string
	Data      map[string]any
	Read      bool
	BandID    string
	ActionURL string
	CreatedAt time.Time
}
