package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/api"
	"github.com/mesikahq/hospital-api/internal/appointment"
	"github.com/mesikahq/hospital-api/internal/audit"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/cache"
	"github.com/mesikahq/hospital-api/internal/config"
	"github.com/mesikahq/hospital-api/internal/database"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/document"
	"github.com/mesikahq/hospital-api/internal/encryption"
	"github.com/mesikahq/hospital-api/internal/metric"
	"github.com/mesikahq/hospital-api/internal/middleware"
	"github.com/mesikahq/hospital-api/internal/notification"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
	"github.com/mesikahq/hospital-api/internal/record"
	"github.com/mesikahq/hospital-api/internal/stats"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Stores
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.Disconnect(db)

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	mongoDB := mongoClient.Database(cfg.Mongo.Database)
	if err := document.EnsureIndexes(ctx, mongoDB); err != nil {
		logger.Fatal("Failed to create document indexes", zap.Error(err))
	}

	// nil client: caching disabled
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, credential caching disabled")
	} else {
		defer redisClient.Close()
	}

	if cfg.Security.EncryptionKey == "" {
		logger.Warn("security.encryption_key not set, documents use an ephemeral key")
	}
	encryptService, err := encryption.NewService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal("Failed to initialize encryption service", zap.Error(err))
	}

	esClient, err := newElasticsearch(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to create Elasticsearch client", zap.Error(err))
	}
	if esClient == nil {
		logger.Info("Elasticsearch not configured, audit events are only logged")
	}
	auditService := audit.NewService(esClient, cfg.Elasticsearch.Index, os.Stdout)

	sender, err := notification.NewSender(cfg.Notification, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notification sender", zap.Error(err))
	}
	dispatcher := notification.NewDispatcher(sender, cfg.Notification.From, cfg.Notification.Timeout, logger)

	chartStore, err := metric.NewStore(ctx, cfg.Charts)
	if err != nil {
		logger.Fatal("Failed to initialize chart store", zap.Error(err))
	}

	// Domain services
	authService := auth.NewService(
		auth.NewPostgresRepository(db),
		auditService,
		cache.New(redisClient, cfg.Redis.Prefix),
		auth.AuthServiceConfig{
			JWTSecret:   cfg.Auth.JWTSecret,
			TokenExpiry: cfg.Auth.TokenExpiry,
			CacheTTL:    cfg.Redis.TTL,
		},
		logger,
	)
	doctorService := doctor.NewService(doctor.NewPostgresRepository(db), auditService, logger)
	nurseService := nurse.NewService(nurse.NewPostgresRepository(db))
	patientService := patient.NewService(patient.NewPostgresRepository(db), auditService, logger)
	appointmentService := appointment.NewService(
		appointment.NewPostgresRepository(db),
		patientService,
		doctorService,
		dispatcher,
		auditService,
		logger,
	)
	recordService := record.NewService(record.NewPostgresRepository(db), patientService, doctorService, auditService, logger)
	metricService := metric.NewService(metric.NewPostgresRepository(db), patientService, chartStore, logger)
	documentService := document.NewService(
		document.NewMongoRepository(mongoDB),
		patientService,
		recordService,
		encryptService,
		cfg.Documents.MaxUploadSize,
		auditService,
		logger,
	)
	aggregator := stats.NewAggregator(authService, doctorService, nurseService, patientService, appointmentService)

	// Daily appointment reminders
	reminderOffset, err := appointment.ParseReminderTime(cfg.Notification.ReminderTime)
	if err != nil {
		logger.Fatal("Invalid reminder time", zap.Error(err))
	}
	go appointment.ReminderLoop(ctx, appointmentService, reminderOffset, logger)

	handler := api.NewHandler(api.Services{
		Auth:         authService,
		Doctors:      doctorService,
		Nurses:       nurseService,
		Patients:     patientService,
		Appointments: appointmentService,
		Records:      recordService,
		Metrics:      metricService,
		Documents:    documentService,
		Stats:        aggregator,
		Audit:        auditService,
	}, cfg.Documents.MaxUploadSize, logger)

	accessLog := middleware.NewAccessLog(auditService, logger)
	authMiddleware := auth.NewMiddleware(authService, api.Profiles{
		Doctors:  doctorService,
		Nurses:   nurseService,
		Patients: patientService,
	}, cfg.Auth.Realm, logger)

	if cfg.Server.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handler, authMiddleware, api.RouterOptions{
		RateLimit:   cfg.Security.RateLimit,
		RateBurst:   cfg.Security.RateBurst,
		CORSOrigins: cfg.Server.CORSOrigins,
		Timeout:     cfg.Server.Timeout,
		AccessLog:   accessLog,
	})
	engine := router.SetupRouter(logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           engine,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr), zap.Bool("tls", cfg.Server.TLS.Enabled))
		serve := srv.ListenAndServe
		if cfg.Server.TLS.Enabled {
			serve = func() error {
				return srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			}
		}
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Flush in-flight notifications and access events
	dispatcher.Wait()
	accessLog.Wait()

	logger.Info("Server exiting")
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == gin.DebugMode {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newElasticsearch returns nil when no addresses are configured.
func newElasticsearch(cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, nil
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}
