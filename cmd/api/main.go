package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fincaops/incident-service/internal/api/http"
	"github.com/fincaops/incident-service/internal/api/http/handlers"
	"github.com/fincaops/incident-service/internal/classify"
	"github.com/fincaops/incident-service/internal/config"
	"github.com/fincaops/incident-service/internal/events"
	"github.com/fincaops/incident-service/internal/locking"
	"github.com/fincaops/incident-service/internal/notify"
	"github.com/fincaops/incident-service/internal/observability"
	"github.com/fincaops/incident-service/internal/persistence"
	"github.com/fincaops/incident-service/internal/repository"
	"github.com/fincaops/incident-service/internal/service"
	"github.com/fincaops/incident-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	// Locking and notification dedup prefer Redis so multiple instances
	// coordinate. When Redis is unreachable at startup, fall back to
	// in-process implementations and keep serving.
	var locker locking.Locker
	var deduper notify.Deduper
	if err := rdb.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using in-process locking and dedup", zap.Error(err))
		locker = locking.NewMemoryLocker()
		deduper = notify.NewMemoryDeduper()
	} else {
		locker = locking.NewRedisLocker(rdb.Client, cfg.Intake.LockTTL(), logger)
		deduper = notify.NewRedisDeduper(rdb.Client, 7*24*time.Hour, logger)
	}

	pool := pg.PoolHandle()
	reporterRepo := repository.NewReporterRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	eventRepo := repository.NewTicketEventRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	classifier := classify.NewClassifier(cfg.Classifier, logger)

	reporterService := service.NewReporterService(reporterRepo, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		EventRepo:     eventRepo,
		ReporterRepo:  reporterRepo,
		Locker:        locker,
		Dispatcher:    dispatcher,
		Logger:        logger,
		EscalationSLA: cfg.Intake.EscalationSLA(),
	})
	resolverService := service.NewResolverService(ticketRepo, classifier, cfg.Intake.ContinuationWindow(), logger)
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		Reporters:  reporterService,
		Resolver:   resolverService,
		Tickets:    ticketService,
		Classifier: classifier,
		Locker:     locker,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	queue := notify.NewQueue(cfg.Notification.QueueSize, logger)
	notificationService := service.NewNotificationService(dispatcher, queue, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	notificationWorker := worker.NewNotificationWorker(queue, deduper, notify.NewLogSender(logger), metrics, logger)
	notificationWorker.Start(ctx)

	escalationWorker := worker.NewEscalationWorker(ticketService,
		time.Duration(cfg.Intake.EscalationSweepSeconds)*time.Second, metrics, logger)
	escalationWorker.Start(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, cfg, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Intake:  handlers.NewIntakeHandler(intakeService, cfg.Intake.WebhookSecret, logger),
		Tickets: handlers.NewTicketsHandler(ticketService, logger),
		Health:  handlers.NewHealthHandler(pg, rdb, metrics, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	escalationWorker.Stop()
	queue.Close()
	notificationWorker.Wait()
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
