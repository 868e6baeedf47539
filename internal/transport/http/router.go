package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/guildgate/internal/config"
	"github.com/guildgate/internal/transport/http/handler"
	appmiddleware "github.com/guildgate/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// lifetime of background middleware state.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	callbackRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.CallbackRateLimit), cfg.CallbackRateBurst, cfg.TrustedProxyPrefixes())

	healthH := handler.NewHealthHandler(deps.Status)
	callbackH := handler.NewCallbackHandler(deps.Verification)

	r.Get("/", healthH.Status)
	r.With(callbackRL.Limit).Get("/callback", callbackH.Callback)

	return r
}
