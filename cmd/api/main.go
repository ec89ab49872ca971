package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/config"
	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/database"
	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/calendars"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/kommo"
	"github.com/xavierca1/ligue-crm/internal/infra/lock"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
	"github.com/xavierca1/ligue-crm/internal/infra/mail"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"github.com/xavierca1/ligue-crm/internal/infra/storage"
	"github.com/xavierca1/ligue-crm/internal/infra/worker"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("falha ao conectar no banco")
	}
	defer db.Close()

	if err := database.ApplyMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("falha ao aplicar migrations")
	}

	health := map[string]handlers.Pinger{"database": db}

	// 1. Repositórios
	recordRepo := database.NewRecordRepository(db)
	stageRepo := database.NewStageRepository(db)
	gateRepo := database.NewGateRepository(db)
	profileRepo := database.NewProfileRepository(db)
	connRepo := database.NewCalendarConnectionRepository(db)
	calendarRepo := database.NewCalendarRepository(db)
	eventRepo := database.NewCalendarEventRepository(db)
	stateRepo := database.NewSyncStateRepository(db)
	sequenceRepo := database.NewSequenceRepository(db)
	enrollmentRepo := database.NewEnrollmentRepository(db)
	sentRepo := database.NewSentEmailRepository(db)
	documentRepo := database.NewDocumentRepository(db)

	// 2. Infra opcional: sem ela a API sobe com a feature desligada
	var publisher usecase.EventPublisher
	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitUser, cfg.RabbitPass, cfg.RabbitHost, cfg.RabbitPort)
	if err != nil {
		log.WithError(err).Warn("RabbitMQ indisponível; eventos de transição desligados")
		health["rabbitmq"] = nil
	} else {
		defer rabbitMQ.Close()
		publisher = queue.NewProducer(rabbitMQ.Ch)
		health["rabbitmq"] = rabbitMQ
	}

	var locker usecase.SyncLocker
	if cfg.RedisAddress != "" {
		redisLocker := lock.NewRedisLocker(cfg.RedisAddress, cfg.SyncLockTTL)
		defer redisLocker.Close()
		locker = redisLocker
		health["redis"] = redisLocker
	} else {
		health["redis"] = nil
	}

	var objects usecase.ObjectStorage
	if cfg.MinioEndpoint != "" {
		minioStorage, err := storage.NewMinioStorage(storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err == nil {
			err = minioStorage.EnsureBucket(ctx)
		}
		if err != nil {
			log.WithError(err).Warn("MinIO indisponível; upload de documentos desligado")
			health["storage"] = nil
		} else {
			objects = minioStorage
			health["storage"] = minioStorage
		}
	} else {
		health["storage"] = nil
	}

	providers := calendars.NewRegistry(
		calendars.Credentials{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		calendars.Credentials{ClientID: cfg.MicrosoftClientID, ClientSecret: cfg.MicrosoftClientSecret},
		cfg.MicrosoftTenant,
		connRepo,
	)
	mailSender := mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom)

	// 3. UseCases
	transitionUC := usecase.NewTransitionStageUseCase(recordRepo, stageRepo, gateRepo, publisher, usecase.NewGateEvaluator(cfg.DefaultPhoneRegion))
	listStagesUC := usecase.NewListStagesUseCase(stageRepo)
	configureGateUC := usecase.NewConfigureGateUseCase(stageRepo, gateRepo)
	syncUC := usecase.NewSyncCalendarUseCase(connRepo, calendarRepo, eventRepo, stateRepo, providers, locker)
	syncStateUC := usecase.NewGetSyncStateUseCase(connRepo, calendarRepo, stateRepo)
	enrollmentUC := usecase.NewEnrollmentUseCase(sequenceRepo, enrollmentRepo, recordRepo)
	dispatchUC := usecase.NewDispatchSequenceStepsUseCase(sequenceRepo, enrollmentRepo, sentRepo, mailSender)
	documentUC := usecase.NewDocumentUseCase(recordRepo, documentRepo, objects)

	// 4. Workers
	limiter := middleware.NewRateLimiter(60, time.Minute)
	go worker.NewSweepWorker(time.Minute, limiter).Start(ctx)

	if cfg.MailHost != "" {
		go worker.NewSequenceStepWorker(dispatchUC, cfg.SequenceTickPeriod).Start(ctx)
	} else {
		log.Warn("MAIL_HOST vazio; envio de sequências desligado")
	}

	if rabbitMQ != nil && cfg.KommoAPIToken != "" {
		kommoClient := kommo.NewClient(cfg.KommoAPIToken, cfg.KommoBaseURL, cfg.KommoWonStatusID)
		mirrorUC := usecase.NewMirrorStageChangeUseCase(instrumentedMirror{kommoClient})
		go func() {
			if err := queue.NewWorker(rabbitMQ.Ch, mirrorUC).Start(ctx, queue.QueueName); err != nil {
				log.WithError(err).Error("worker do Kommo parou")
			}
		}()
	}

	// 5. Router
	router := newRouter(routerDeps{
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   []byte(cfg.JWTSecret),
		Profiles:    profileRepo,
		Limiter:     limiter,
		Health:      handlers.NewHealthHandler(version, health),
		Pipeline:    handlers.NewPipelineHandler(transitionUC, listStagesUC, configureGateUC),
		Calendar:    handlers.NewCalendarSyncHandler(syncUC, syncStateUC),
		Enrollments: handlers.NewEnrollmentHandler(enrollmentUC),
		Documents:   handlers.NewDocumentHandler(documentUC),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{"port": cfg.Port, "version": version}).Info("CRM API no ar")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("servidor parou")
	}
}

// instrumentedMirror conta as falhas do Kommo no integration_errors_total.
type instrumentedMirror struct {
	next usecase.WonDealMirror
}

func (m instrumentedMirror) MirrorWonDeal(ctx context.Context, change entity.StageChange) (int, error) {
	id, err := m.next.MirrorWonDeal(ctx, change)
	if err != nil {
		middleware.RecordIntegrationError("kommo")
	}
	return id, err
}
