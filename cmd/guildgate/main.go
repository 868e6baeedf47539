package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/guildgate/internal/application/events"
	"github.com/guildgate/internal/application/notification"
	"github.com/guildgate/internal/application/raid"
	"github.com/guildgate/internal/application/supervisor"
	"github.com/guildgate/internal/application/verification"
	"github.com/guildgate/internal/config"
	"github.com/guildgate/internal/infrastructure/discord"
	jwtinfra "github.com/guildgate/internal/infrastructure/jwt"
	"github.com/guildgate/internal/infrastructure/memory"
	"github.com/guildgate/internal/infrastructure/oauth"
	"github.com/guildgate/internal/infrastructure/sns"
	"github.com/guildgate/internal/infrastructure/webhook"
	transporthttp "github.com/guildgate/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal", "err", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config) error {
	// Background workers outlive the signal so in-flight work can drain.
	bg, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	sessions := memory.NewSessionStore(cfg.SessionTTL)
	joins := raid.NewDetector(cfg.RaidThreshold, cfg.RaidWindow)
	var sweepers sync.WaitGroup
	sweepers.Add(2)
	go func() {
		defer sweepers.Done()
		sessions.RunSweeper(bg, cfg.SweepEvery)
	}()
	go func() {
		defer sweepers.Done()
		joins.RunSweeper(bg, cfg.SweepEvery)
	}()

	var sink notification.Sink = notification.NoOpSink{}
	if cfg.NotificationsEnabled() {
		sink = webhook.NewSender(cfg.WebhookURL, &http.Client{Timeout: cfg.OAuthTimeout})
	} else {
		slog.Warn("WEBHOOK_URL not set, verification notifications disabled")
	}
	notifier := notification.NewDispatcher(sink, cfg.NotifyBuffer, cfg.OAuthTimeout)

	state, err := jwtinfra.NewStateSigner(cfg.StateSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}

	gateway, err := discord.NewClient(cfg)
	if err != nil {
		return err
	}

	verifier := verification.NewService(verification.ServiceDeps{
		Sessions: sessions,
		OAuth:    oauth.NewClient(cfg),
		State:    state,
		Grantor:  gateway.Grantor(),
		Notifier: notifier,
		RoleName: cfg.VerifiedRoleName,
	})

	var alerter events.Alerter
	if cfg.RaidAlertsEnabled() {
		if a, err := sns.NewAlerter(ctx, cfg); err == nil {
			alerter = a
		} else {
			slog.Warn("raid alerts not available", "err", err)
		}
	}
	gateway.Bind(events.NewDispatcher(events.Deps{
		Verifier: verifier,
		Joins:    joins,
		Alerter:  alerter,
		Latency:  gateway,
	}))

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: transporthttp.NewRouter(bg, cfg, &transporthttp.Deps{
			Verification: verifier,
			Status:       gateway,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The listener starts first so health stays reachable during backoff.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	policy := supervisor.DefaultPolicy()
	policy.MaxRetries = cfg.StartupMaxRetries
	gatewayErr := make(chan error, 1)
	go func(out chan<- error) { out <- supervisor.New(gateway, policy).Run(ctx) }(gatewayErr)

	var runErr error
wait:
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			break wait
		case err := <-serverErr:
			runErr = fmt.Errorf("http server: %w", err)
			break wait
		case err := <-gatewayErr:
			if err != nil && ctx.Err() == nil {
				runErr = err
				break wait
			}
			gatewayErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	drain(shutdownCtx, []drainStep{
		{"http server", srv.Shutdown},
		{"gateway", func(context.Context) error { return gateway.Close() }},
		{"notifications", func(context.Context) error { notifier.Close(); return nil }},
		{"sweepers", func(context.Context) error { cancelBg(); sweepers.Wait(); return nil }},
	})
	slog.Info("stopped", "notifications_dropped", notifier.Dropped())
	return runErr
}

// drainStep is one stage of the shutdown sequence.
type drainStep struct {
	name string
	stop func(ctx context.Context) error
}

// drain runs steps in order. A failing step is logged and the rest still run.
func drain(ctx context.Context, steps []drainStep) {
	for _, step := range steps {
		if err := step.stop(ctx); err != nil {
			slog.Warn("shutdown step failed", "step", step.name, "err", err)
			continue
		}
		slog.Debug("shutdown step done", "step", step.name)
	}
}
