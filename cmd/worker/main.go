package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/retainly/retention-api/config"
	"github.com/retainly/retention-api/internal/crm"
	"github.com/retainly/retention-api/internal/email"
	"github.com/retainly/retention-api/internal/handler"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/internal/repository/postgres"
	auditService "github.com/retainly/retention-api/internal/service/audit"
	playbookService "github.com/retainly/retention-api/internal/service/playbook"
	reclaim "github.com/retainly/retention-api/internal/worker"
	"github.com/retainly/retention-api/pkg/logger"
	"github.com/retainly/retention-api/pkg/messaging"
	messagingredis "github.com/retainly/retention-api/pkg/messaging/redis"
	"github.com/retainly/retention-api/pkg/metrics"
	"github.com/retainly/retention-api/pkg/worker"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = messagingredis.NewBroker(messagingredis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log.Zerolog())
		if err != nil {
			log.Error(err, "redis unavailable, continuing without event publishing")
			broker = nil
		}
	}

	m := metrics.New("retention_worker")

	accountRepo := postgres.NewAccountRepository(db)
	customerRepo := postgres.NewCustomerRepository(db)
	playbookRepo := postgres.NewPlaybookRepository(db)
	queueRepo := postgres.NewQueuedActionRepository(db)
	logRepo := postgres.NewActionLogRepository(db)

	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		SendTimeout: cfg.SMTP.SendTimeout,
	})

	var crmSvc crm.Service = crm.NoopService{}
	if cfg.CRM.WebhookURL != "" {
		crmSvc = crm.NewWebhookService(crm.Config{
			WebhookURL: cfg.CRM.WebhookURL,
			APIKey:     cfg.CRM.APIKey,
			Timeout:    cfg.CRM.Timeout,
		})
	}

	auditor := auditService.NewService(logRepo)

	engine := playbookService.NewEngine(
		playbookRepo, customerRepo, queueRepo,
		emailSvc, auditor, broker, log, m,
		playbookService.EngineConfig{
			EmailDispatch: playbookService.DispatchMode(cfg.Engine.EmailDispatch),
		},
	)

	processor := worker.NewActionProcessor(
		queueRepo, customerRepo, emailSvc, crmSvc, auditor, broker,
		worker.ActionProcessorConfig{
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.Worker.PollInterval,
		},
		log, m,
	)

	reclaimer := reclaim.NewReclaimWorker(queueRepo, cfg.Worker.ClaimLease, cfg.Worker.ReclaimInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reclaimer.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runEngineSweeps(ctx, engine, accountRepo, cfg.Engine.SweepInterval, log)
	}()

	healthSrv := startHealthServer(db, cfg.Server.Port+1, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down worker")

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "failed to stop health server")
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Error(err, "failed to close broker")
		}
	}
}

// runEngineSweeps evaluates every account's playbooks on a fixed cadence. A
// failed sweep for one account never blocks the others.
func runEngineSweeps(ctx context.Context, engine *playbookService.Engine, accounts repository.AccountRepository, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := accounts.ListIDs(ctx)
			if err != nil {
				log.Error(err, "failed to list accounts for sweep")
				continue
			}
			for _, ownerID := range ids {
				summary, err := engine.Run(ctx, ownerID)
				if err != nil {
					log.Error(err, "engine sweep failed", "owner_id", ownerID.String())
					continue
				}
				log.Info("engine sweep finished",
					"owner_id", ownerID.String(),
					"matches", summary.Matches,
					"queued", summary.ActionsQueued,
					"skipped", summary.ActionsSkipped,
				)
			}
		}
	}
}

func startHealthServer(db *sqlx.DB, port int, log *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	h := handler.NewHandler(db)
	engine.GET("/health/live", h.LivenessCheck)
	engine.GET("/health/ready", h.ReadinessCheck)
	engine.GET("/metrics", h.MetricsHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		log.Info("starting worker health server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "health server failed")
		}
	}()
	return srv
}
