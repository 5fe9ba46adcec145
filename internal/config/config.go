package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env        string
	Addr       string
	DBDSN      string
	LogLevel   string
	ServiceKey string

	APNs APNsConfig
	FCM  FCMConfig

	MaxConcurrentSends int
	ProviderTimeout    time.Duration
}

// APNsConfig holds the credentials for token-based APNs authentication.
// PrivateKey is the content of the .p8 key, either fully PEM-armored or the
// bare base64 body, possibly with literal \n escapes from the environment.
type APNsConfig struct {
	KeyID      string
	TeamID     string
	BundleID   string
	PrivateKey string
	Production bool
}

func (c APNsConfig) Enabled() bool {
	return c.KeyID != "" || c.TeamID != "" || c.BundleID != "" || c.PrivateKey != ""
}

// FCMConfig holds the service-account credentials for the FCM HTTP v1 API.
type FCMConfig struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
	ChannelID   string
}

func (c FCMConfig) Enabled() bool {
	return c.ProjectID != "" || c.ClientEmail != "" || c.PrivateKey != ""
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:        getenv("APP_ENV"),
		Addr:       getenv("APP_ADDR"),
		DBDSN:      getenv("APP_DB_DSN"),
		LogLevel:   getenv("APP_LOG_LEVEL"),
		ServiceKey: getenv("APP_SERVICE_KEY"),
		APNs: APNsConfig{
			KeyID:      getenv("APP_APNS_KEY_ID"),
			TeamID:     getenv("APP_APNS_TEAM_ID"),
			BundleID:   getenv("APP_APNS_BUNDLE_ID"),
			PrivateKey: getenv("APP_APNS_PRIVATE_KEY"),
		},
		FCM: FCMConfig{
			ProjectID:   getenv("APP_FCM_PROJECT_ID"),
			ClientEmail: getenv("APP_FCM_CLIENT_EMAIL"),
			PrivateKey:  getenv("APP_FCM_PRIVATE_KEY"),
			ChannelID:   getenv("APP_FCM_CHANNEL_ID"),
		},
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.FCM.ChannelID == "" {
		cfg.FCM.ChannelID = "bandwith_general"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	// The production flag selects the APNs host. Anything other than a
	// literal true/false is rejected rather than silently falling back to
	// the sandbox.
	switch prodRaw := getenv("APP_APNS_PRODUCTION"); prodRaw {
	case "", "false":
		cfg.APNs.Production = false
	case "true":
		cfg.APNs.Production = true
	default:
		return Config{}, fmt.Errorf("APP_APNS_PRODUCTION: must be true or false, got %q", prodRaw)
	}

	if cfg.APNs.Enabled() {
		if cfg.APNs.KeyID == "" || cfg.APNs.TeamID == "" || cfg.APNs.BundleID == "" || cfg.APNs.PrivateKey == "" {
			return Config{}, errors.New("APNs config: APP_APNS_KEY_ID, APP_APNS_TEAM_ID, APP_APNS_BUNDLE_ID and APP_APNS_PRIVATE_KEY must all be set, or none")
		}
	}
	if cfg.FCM.Enabled() {
		if cfg.FCM.ProjectID == "" || cfg.FCM.ClientEmail == "" || cfg.FCM.PrivateKey == "" {
			return Config{}, errors.New("FCM config: APP_FCM_PROJECT_ID, APP_FCM_CLIENT_EMAIL and APP_FCM_PRIVATE_KEY must all be set, or none")
		}
	}

	maxRaw := getenv("APP_MAX_CONCURRENT_SENDS")
	if maxRaw == "" {
		cfg.MaxConcurrentSends = 16
	} else {
		n, err := strconv.Atoi(maxRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_MAX_CONCURRENT_SENDS: %w", err)
		}
		if n <= 0 {
			return Config{}, errors.New("APP_MAX_CONCURRENT_SENDS: must be > 0")
		}
		cfg.MaxConcurrentSends = n
	}

	timeoutRaw := getenv("APP_PROVIDER_TIMEOUT")
	if timeoutRaw == "" {
		cfg.ProviderTimeout = 10 * time.Second
	} else {
		d, err := time.ParseDuration(timeoutRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PROVIDER_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return Config{}, errors.New("APP_PROVIDER_TIMEOUT: must be > 0")
		}
		cfg.ProviderTimeout = d
	}

	if cfg.IsProd() {
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.ServiceKey) < 32 {
			return Config{}, errors.New("APP_SERVICE_KEY: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }
