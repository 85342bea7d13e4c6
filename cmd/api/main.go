package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/learnhub-api/internal/certificate"
	"github.com/noah-isme/learnhub-api/internal/config"
	"github.com/noah-isme/learnhub-api/internal/database"
	"github.com/noah-isme/learnhub-api/internal/events"
	"github.com/noah-isme/learnhub-api/internal/handler"
	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
	"github.com/noah-isme/learnhub-api/internal/router"
	"github.com/noah-isme/learnhub-api/internal/scheduler"
	"github.com/noah-isme/learnhub-api/internal/service"
	cloud "github.com/noah-isme/learnhub-api/pkg/cloudinary"
	"github.com/noah-isme/learnhub-api/pkg/mailer"
	"github.com/noah-isme/learnhub-api/pkg/paystack"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	db, err := database.ConnectPostgres(startupCtx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.CourseContent{},
		&models.Enrollment{},
		&models.Certificate{},
		&models.GamificationEntry{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	// Redis and NATS are optional: without them issuance runs unlocked and
	// events stay local.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(startupCtx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}
	publisher := events.NewPublisher(natsConn, redisClient, cfg.EventsChannel, logger)

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	var certificateMailer service.Mailer = mailer.NewLog(logger)
	if cfg.SendGridAPIKey != "" {
		sendGrid, err := mailer.NewSendGrid(mailer.Config{
			APIKey:    cfg.SendGridAPIKey,
			FromName:  cfg.MailFromName,
			FromEmail: cfg.MailFromEmail,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create sendgrid mailer: %v", err)
		}
		certificateMailer = sendGrid
	}

	var payments service.PaymentVerifier
	if cfg.PaystackSecretKey != "" {
		client, err := paystack.New(paystack.Config{
			BaseURL:   cfg.PaystackBaseURL,
			SecretKey: cfg.PaystackSecretKey,
			Timeout:   cfg.PaystackTimeout,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create paystack client: %v", err)
		}
		payments = client
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	gamificationRepo := repository.NewGamificationRepository(db)

	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, payments, publisher, validate, logger)
	progressService := service.NewProgressService(enrollmentRepo, publisher, validate, logger)
	certificateService := service.NewCertificateService(service.CertificateDependencies{
		Students:     studentRepo,
		Courses:      courseRepo,
		Enrollments:  enrollmentRepo,
		Certificates: certificateRepo,
		Renderer:     certificate.NewPDFRenderer(cfg.AppName),
		Storage:      uploader,
		Mailer:       certificateMailer,
		Events:       publisher,
		Locks:        redisClient,
	}, service.CertificateConfig{
		UploadTimeout:  cfg.CertificateUploadTimeout,
		Concurrency:    cfg.CertificateConcurrency,
		LockTTL:        cfg.CertificateLockTTL,
		SweepBatchSize: cfg.CertificateSweepBatch,
	}, validate, logger)
	gamificationService := service.NewGamificationService(gamificationRepo, courseRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService, progressService, logger),
		CertificateHandler:  handler.NewCertificateHandler(certificateService, logger),
		GamificationHandler: handler.NewGamificationHandler(gamificationService, logger),
		PaymentHandler:      handler.NewPaymentHandler(enrollmentService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:        probes,
	})

	var sweeps *scheduler.CertificateScheduler
	if cfg.CertificateAutoIssue != "" {
		sweeps, err = scheduler.NewCertificateScheduler(cfg.CertificateAutoIssue, certificateService, cfg.CertificateIssuer, cfg.CertificateSweepTimeout, logger)
		if err != nil {
			log.Fatalf("failed to create certificate scheduler: %v", err)
		}
		sweeps.Start()
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, sweeps)
}

func waitForShutdown(app *fiber.App, sweeps *scheduler.CertificateScheduler) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if sweeps != nil {
		sweeps.Stop(ctx)
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
