package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/config"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/dialer"
	"voiceagent-platform/internal/httpapi"
	"voiceagent-platform/internal/pricing"
	"voiceagent-platform/internal/reconcile"
	"voiceagent-platform/internal/reporting"
	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/logger"
	"voiceagent-platform/pkg/utils"
)

const sweepInterval = 5 * time.Minute

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

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	if err := utils.Migrate(cfg.MigrateDSN()); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Stores and domain services
	campaignRepo := campaign.NewRepo(db)
	conversationRepo := conversation.NewRepo(db)
	chargeRepo := billing.NewSQLRepo(db)

	auditSvc := audit.NewService(audit.NewSQLRepo(db))
	billingSvc := billing.NewService(chargeRepo)
	pricingSvc := pricing.NewService(cfg.Pricing.FallbackEuroPerMinute)
	lifecycle := campaign.NewLifecycle(campaignRepo, auditSvc, log)
	reportingSvc := reporting.NewService(reporting.NewRepository(campaignRepo, chargeRepo))

	provider := voiceai.NewElevenLabs(cfg.VoiceAI.BaseURL, cfg.VoiceAI.APIKey)

	continuer := dialer.NewHTTPContinuer(
		cfg.Dialer.SelfURL+"/v1/campaigns/dialer",
		cfg.Dialer.ServiceToken,
		log,
	)

	// The run lock must outlive a worst-case batch: every contact polled to
	// the limit plus inter-contact delays.
	lockTTL := time.Duration(cfg.Dialer.Quota)*(cfg.Dialer.PollMaxWait+cfg.Dialer.ContactDelay) + 2*time.Minute

	controller := dialer.NewController(dialer.ControllerDeps{
		Store:         campaignRepo,
		Conversations: conversationRepo,
		Lifecycle:     lifecycle,
		Resolver:      dialer.NewResolver(provider, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Dialer.CountryCode, log),
		Placer:        dialer.NewPlacer(provider, conversationRepo, campaignRepo, cfg.Dialer.AgentPhoneNumber, cfg.Dialer.CountryCode),
		Poller:        dialer.NewPoller(provider, cfg.Dialer.PollInterval, cfg.Dialer.PollMaxWait),
		Pricing:       pricingSvc,
		Billing:       billingSvc,
		Continuer:     continuer,
		Lock:          dialer.NewRedisRunLock(rdb, lockTTL),
		AgentNumber:   cfg.Dialer.AgentPhoneNumber,
		Quota:         cfg.Dialer.Quota,
		ContactDelay:  cfg.Dialer.ContactDelay,
		Log:           log,
	})

	sweep := reconcile.NewSweep(reconcile.SweepDeps{
		Store:         campaignRepo,
		Conversations: conversationRepo,
		Provider:      provider,
		Pricing:       pricingSvc,
		Billing:       billingSvc,
		Audit:         auditSvc,
		Continuer:     continuer,
		CountryCode:   cfg.Dialer.CountryCode,
		StallAfter:    cfg.Dialer.StallAfter,
		Log:           log,
	})
	go runSweepLoop(rootCtx, sweep, log)

	handlers := httpapi.Handlers{
		Auth:          authManager,
		Lifecycle:     lifecycle,
		Controller:    controller,
		Conversations: conversationRepo,
		Reporting:     reportingSvc,
		Billing:       billingSvc,
		Sweep:         sweep,
		ServiceToken:  cfg.Dialer.ServiceToken,
		Log:           log,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, handlers, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Dial batches run inside the request; give them the full poll budget.
		WriteTimeout: lockTTL,
		IdleTimeout:  60 * time.Second,
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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// runSweepLoop reconciles on a fixed cadence until shutdown.
func runSweepLoop(ctx context.Context, sweep *reconcile.Sweep, log *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweep.Run(ctx); err != nil {
				log.Warn("scheduled sweep failed", "err", err)
			}
		}
	}
}
