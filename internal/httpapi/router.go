package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bandwithpush/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Dispatch   *service.DispatchService
	Tokens     *service.TokenService
	ServiceKey string
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:      logger,
		isProd:      opts.IsProd,
		dbPing:      opts.DBPing,
		dispatchSvc: opts.Dispatch,
		tokenSvc:    opts.Tokens,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)

	auth := RequireServiceKey(opts.ServiceKey)
	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, auth(handlerFunc))
	}

	if api.dispatchSvc != nil {
		handle("POST /v1/push/dispatch", api.handlePushDispatch)
	} else {
		handle("POST /v1/push/dispatch", handleNotConfigured)
	}
	if api.tokenSvc != nil {
		handle("POST /v1/push/tokens", api.handleTokenRegister)
		handle("DELETE /v1/push/tokens", api.handleTokenUnregister)
	} else {
		handle("POST /v1/push/tokens", handleNotConfigured)
		handle("DELETE /v1/push/tokens", handleNotConfigured)
	}

	// CORS preflight is unauthenticated; browsers send it without headers.
	mux.HandleFunc("OPTIONS /v1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var h http.Handler = mux
	h = CORS()(h)
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotConfigured(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusServiceUnavailable, "unavailable", "database not configured")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	dispatchSvc *service.DispatchService
	tokenSvc    *service.TokenService
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
