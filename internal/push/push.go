// Package push contains the provider transport adapters for APNs and FCM.
package push

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidToken marks a delivery failure where the provider reported the
// device token as permanently dead. The caller is expected to deactivate the
// token; any other failure leaves the token alone.
var ErrInvalidToken = errors.New("push: invalid device token")

// Message is the provider-neutral notification content. Data values are kept
// untyped here; each adapter applies its own coercion rules.
type Message struct {
	Title string
	Body  string
	Badge *int
	Sound string
	Data  map[string]any
}

// Sender delivers one message to one device token.
type Sender interface {
	Send(ctx context.Context, deviceToken string, msg Message) error
}

// coerceDataStrings flattens a data map to string values, as required by the
// FCM v1 API. APNs payloads pass values through untouched.
func coerceDataStrings(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = coerceString(v)
	}
	return out
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
