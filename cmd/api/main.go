package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"holdline/internal/audit"
	"holdline/internal/auth"
	"holdline/internal/broadcast"
	"holdline/internal/calls"
	"holdline/internal/config"
	"holdline/internal/detection"
	"holdline/internal/httpapi"
	"holdline/internal/ingest"
	"holdline/internal/notify"
	"holdline/internal/observability"
	"holdline/internal/reporting"
	"holdline/internal/speech"
	"holdline/internal/telephony"
	"holdline/pkg/logger"
	"holdline/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// slotTTL bounds a leaked per-user call slot if the process dies mid-call.
const slotTTL = 4 * time.Hour

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics("holdline")
	registry := calls.NewRegistry()
	registry.Observe(metrics)

	// Audit trail: Postgres when configured, memory otherwise.
	var (
		db        *sql.DB
		auditRepo audit.Repository = audit.NewMemoryRepo()
	)
	if cfg.DatabaseEnabled() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := audit.NewPostgresRepo(db)
		if err := pg.EnsureSchema(rootCtx); err != nil {
			log.Error("audit schema failed", "err", err)
			os.Exit(1)
		}
		auditRepo = pg
	}
	auditSvc := audit.NewService(auditRepo, 1024)
	registry.Observe(auditSvc)
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		auditSvc.Run(rootCtx)
	}()

	// Per-user call cap. Disabled without Redis.
	var slots *utils.CallSlots
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		slots, err = utils.NewCallSlots(rdb, cfg.Calls.MaxActivePerUser, slotTTL)
		if err != nil {
			log.Error("call slots init failed", "err", err)
			os.Exit(1)
		}
	}

	callbacks := telephony.Callbacks{Base: cfg.App.PublicURL}
	var provider telephony.Provider = telephony.NewSimulatedProvider()
	if cfg.TwilioEnabled() {
		tp, err := telephony.NewTwilioProvider(telephony.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			FromNumber: cfg.Twilio.FromNumber,
		}, callbacks)
		if err != nil {
			log.Error("twilio init failed", "err", err)
			os.Exit(1)
		}
		provider = tp
	}
	log.Info("telephony provider ready", "provider", provider.Name())

	// Detection.
	windows := detection.NewWindowBuffer(cfg.Detection.AudioWindow, detection.TelephonySampleRate)
	var transcriber detection.Transcriber
	if cfg.Detection.OpenAIAPIKey != "" {
		wt, err := detection.NewWhisperTranscriber(cfg.Detection.OpenAIAPIKey, cfg.Detection.TranscriptionModel)
		if err != nil {
			log.Error("transcriber init failed", "err", err)
			os.Exit(1)
		}
		transcriber = wt
	}
	tracker := speech.NewTracker(cfg.Detection.ContinuityTrigger, cfg.Detection.DecayWindow)
	pipeline := speech.NewPipeline(windows, transcriber)

	// Notifications.
	prefs := notify.NewMemoryPreferenceStore()
	channels := []notify.Channel{notify.NewSMSChannel(provider)}
	if cfg.Notify.VAPIDPrivateKey != "" {
		channels = append(channels, notify.NewPushChannel(notify.PushConfig{
			Subscriber:      cfg.Notify.VAPIDSubscriber,
			VAPIDPublicKey:  cfg.Notify.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Notify.VAPIDPrivateKey,
		}))
	}
	if cfg.Notify.SMTPHost != "" {
		channels = append(channels, notify.NewEmailChannel(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUser,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.EmailFrom,
		}))
	}
	dispatcher := notify.NewDispatcher(prefs, cfg.Notify.DispatchTimeout, channels...).WithRecorder(metrics).WithLookup(registry)

	events := ingest.NewService(registry, tracker, pipeline, dispatcher, provider, ingest.Options{
		Threshold:  cfg.Detection.HumanThreshold,
		AutoUnmute: cfg.Calls.AutoUnmute,
	}).WithRecorder(metrics)

	// Per-call state is released once, when the call first goes terminal.
	registry.OnTeardown(func(c calls.Call) {
		tracker.Forget(c.ID)
		windows.Forget(c.ID)
		dispatcher.Forget(c.ID)
		if slots != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := slots.Release(ctx, c.UserID); err != nil {
				log.Warn("call slot release failed", "call_id", c.ID, "err", err)
			}
		}
	})

	registry.StartJanitor(rootCtx, time.Minute, cfg.Calls.Retention)
	tracker.StartJanitor(rootCtx, cfg.Detection.DecayWindow)

	handlers := httpapi.Handlers{
		Calls:    registry,
		Events:   events,
		Provider: provider,
		Streamer: broadcast.NewStreamer(registry, broadcast.DefaultInterval),
		Reports:  reporting.NewService(reporting.RegistryRepo{Registry: registry}),
		Prefs:    prefs,
		Audit:    auditSvc,
		Voice: telephony.VoiceTokenConfig{
			AccountSID:  cfg.Twilio.AccountSID,
			APIKey:      cfg.Twilio.APIKey,
			APISecret:   cfg.Twilio.APISecret,
			TwiMLAppSID: cfg.Twilio.TwiMLAppSID,
		},
		Listened: metrics,
	}
	if slots != nil {
		handlers.Slots = slots
	}

	media := telephony.NewMediaStreamHandler(windows, registry)
	media.Recorder = metrics

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	var signature gin.HandlerFunc
	if cfg.TwilioEnabled() && cfg.Twilio.ValidateSignatures {
		signature = telephony.RequireSignature(cfg.Twilio.AuthToken, cfg.App.PublicURL)
	}

	registerRoutes(r, routeDeps{
		handlers:  handlers,
		webhooks:  telephony.WebhookHandler{Events: events, Callbacks: callbacks},
		media:     media,
		authMW:    auth.RequireAccessToken(authManager),
		signature: signature,
		metrics:   metrics.Handler(),
		db:        db,
	})

	// No WriteTimeout: status streams stay open for the whole call.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	events.Wait()
	dispatcher.Wait()

	select {
	case <-auditDone:
	case <-shutdownCtx.Done():
		log.Warn("audit drain timed out")
	}
}
