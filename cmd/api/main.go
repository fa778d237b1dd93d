package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/retainly/retention-api/config"
	"github.com/retainly/retention-api/internal/email"
	"github.com/retainly/retention-api/internal/handler"
	actionHandler "github.com/retainly/retention-api/internal/handler/action"
	authHandler "github.com/retainly/retention-api/internal/handler/auth"
	customerHandler "github.com/retainly/retention-api/internal/handler/customer"
	playbookHandler "github.com/retainly/retention-api/internal/handler/playbook"
	"github.com/retainly/retention-api/internal/middleware"
	"github.com/retainly/retention-api/internal/repository/postgres"
	"github.com/retainly/retention-api/internal/router"
	auditService "github.com/retainly/retention-api/internal/service/audit"
	authService "github.com/retainly/retention-api/internal/service/auth"
	customerService "github.com/retainly/retention-api/internal/service/customer"
	playbookService "github.com/retainly/retention-api/internal/service/playbook"
	"github.com/retainly/retention-api/pkg/auth"
	"github.com/retainly/retention-api/pkg/logger"
	"github.com/retainly/retention-api/pkg/messaging"
	messagingredis "github.com/retainly/retention-api/pkg/messaging/redis"
	"github.com/retainly/retention-api/pkg/metrics"
	"github.com/retainly/retention-api/pkg/security"
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

	m := metrics.New("retention")

	// Repositories
	accountRepo := postgres.NewAccountRepository(db)
	customerRepo := postgres.NewCustomerRepository(db)
	playbookRepo := postgres.NewPlaybookRepository(db)
	queueRepo := postgres.NewQueuedActionRepository(db)
	logRepo := postgres.NewActionLogRepository(db)

	// Outbound integrations
	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		SendTimeout: cfg.SMTP.SendTimeout,
	})

	// Services
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	tokens := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(accountRepo, hasher, tokens)
	auditor := auditService.NewService(logRepo)
	customerSvc := customerService.NewService(customerRepo, log, m)
	playbookSvc := playbookService.NewService(playbookRepo, log)
	engine := playbookService.NewEngine(
		playbookRepo, customerRepo, queueRepo,
		emailSvc, auditor, broker, log, m,
		playbookService.EngineConfig{
			EmailDispatch: playbookService.DispatchMode(cfg.Engine.EmailDispatch),
		},
	)

	// HTTP layer
	authMw := middleware.NewAuthMiddleware(authSvc)
	r := router.NewRouter(
		authMw,
		authHandler.NewHandler(authSvc),
		customerHandler.NewHandler(customerSvc),
		playbookHandler.NewHandler(playbookSvc, engine),
		actionHandler.NewHandler(queueRepo, auditor),
		handler.NewHandler(db),
		router.RouterConfig{
			RateLimitRPS:  cfg.RateLimit.RPS,
			RateBurst:     cfg.RateLimit.Burst,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "retention_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "forced shutdown")
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Error(err, "failed to close broker")
		}
	}
}
