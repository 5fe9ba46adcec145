package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"bandwithpush/internal/config"
	"bandwithpush/internal/domain"
	"bandwithpush/internal/httpapi"
	"bandwithpush/internal/push"
	"bandwithpush/internal/service"
	"bandwithpush/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	var (
		dispatchSvc *service.DispatchService
		tokenSvc    *service.TokenService
		dbPing      func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		pushTokens := postgres.NewPushTokensStore(pgPool)
		notifications := postgres.NewNotificationsStore(pgPool)

		dispatchSvc = &service.DispatchService{
			Tokens:        pushTokens,
			Notifications: notifications,
			Senders:       newSenders(cfg, logger),
			Logger:        logger,
			MaxConcurrent: cfg.MaxConcurrentSends,
			SendTimeout:   cfg.ProviderTimeout,
		}
		tokenSvc = &service.TokenService{Tokens: pushTokens}
		dbPing = pgPool.Ping
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:     logger,
		IsProd:     cfg.IsProd(),
		DBPing:     dbPing,
		Dispatch:   dispatchSvc,
		Tokens:     tokenSvc,
		ServiceKey: cfg.ServiceKey,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// newSenders builds one sender per configured provider. A provider whose
// credentials are absent or unusable is left out of the map; its tokens fail
// with provider_unavailable while the other platform keeps working.
func newSenders(cfg config.Config, logger *slog.Logger) map[domain.Platform]push.Sender {
	senders := make(map[domain.Platform]push.Sender)

	if cfg.APNs.Enabled() {
		apns, err := push.NewAPNSSender(push.APNSConfig{
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			BundleID:   cfg.APNs.BundleID,
			PrivateKey: cfg.APNs.PrivateKey,
			Production: cfg.APNs.Production,
		}, logger)
		if err != nil {
			logger.Error("apns sender init failed, ios sends disabled", "err", err)
		} else {
			senders[domain.PlatformIOS] = apns
			logger.Info("apns sender ready", "bundle_id", cfg.APNs.BundleID, "production", cfg.APNs.Production)
		}
	} else {
		logger.Info("apns disabled: no credentials configured")
	}

	if cfg.FCM.Enabled() {
		fcm, err := push.NewFCMSender(context.Background(), push.FCMConfig{
			ProjectID:   cfg.FCM.ProjectID,
			ClientEmail: cfg.FCM.ClientEmail,
			PrivateKey:  cfg.FCM.PrivateKey,
			ChannelID:   cfg.FCM.ChannelID,
		})
		if err != nil {
			logger.Error("fcm sender init failed, android/web sends disabled", "err", err)
		} else {
			senders[domain.PlatformAndroid] = fcm
			senders[domain.PlatformWeb] = fcm
			logger.Info("fcm sender ready", "project_id", cfg.FCM.ProjectID)
		}
	} else {
		logger.Info("fcm disabled: no credentials configured")
	}

	return senders
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
