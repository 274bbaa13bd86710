package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wareflow/inventory-service/config"
	"github.com/wareflow/inventory-service/internal/events"
	"github.com/wareflow/inventory-service/internal/pkg/broker"
	"github.com/wareflow/inventory-service/internal/pkg/cache"
	"github.com/wareflow/inventory-service/internal/pkg/logger"
	"github.com/wareflow/inventory-service/internal/pkg/postgres"
	"github.com/wareflow/inventory-service/internal/pkg/tracing"
	"github.com/wareflow/inventory-service/internal/reservation"

	capRepoPkg "github.com/wareflow/inventory-service/internal/capacity/repository"
	capUCPkg "github.com/wareflow/inventory-service/internal/capacity/usecase"
	catalogRepoPkg "github.com/wareflow/inventory-service/internal/catalog/repository"
	ledgerRepoPkg "github.com/wareflow/inventory-service/internal/ledger/repository"
	ledgerUCPkg "github.com/wareflow/inventory-service/internal/ledger/usecase"
	resRepoPkg "github.com/wareflow/inventory-service/internal/reservation/repository"
	resUCPkg "github.com/wareflow/inventory-service/internal/reservation/usecase"
	sweepUCPkg "github.com/wareflow/inventory-service/internal/sweeper/usecase"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.App.Env == "dev" || cfg.App.Env == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize Tracing
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Setup(ctx, &tracing.Config{
			Enabled:        true,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			ServiceName:    cfg.App.ServiceName,
			ServiceVersion: cfg.App.ServiceVersion,
		})
		if err != nil {
			appLogger.Fatal("Could not set up tracing", zap.Error(err))
		}
		defer shutdown(context.Background())
		appLogger.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	// 4. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 5. Initialize Redis (optional, coordinates sweep passes across instances)
	var locker reservation.Locker
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = redisClient
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 6. Initialize Kafka Producer (optional)
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, appLogger)
		appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 7. Initialize Repositories
	catalogRepo := catalogRepoPkg.NewPGRepository(db)
	capacityRepo := capRepoPkg.NewPGRepository(db)
	ledgerRepo := ledgerRepoPkg.NewPGRepository(db)
	reservationRepo := resRepoPkg.NewPGRepository(db)

	// 8. Initialize UseCases
	capacityUC := capUCPkg.NewCapacityUseCase(capacityRepo, appLogger, cfg.Capacity.Enforcement)
	ledgerUC := ledgerUCPkg.NewLedgerUseCase(appLogger, ledgerRepo, catalogRepo, capacityUC, publisher)
	reservationUC := resUCPkg.NewReservationUseCase(appLogger, reservationRepo, ledgerUC, catalogRepo, locker, publisher, cfg.Reservation.DefaultTTL)
	sweeperUC := sweepUCPkg.NewSweeperUseCase(appLogger, reservationUC, ledgerUC, locker, publisher, sweepUCPkg.Config{
		Interval:  cfg.Sweeper.Interval,
		BatchSize: cfg.Sweeper.BatchSize,
		LockTTL:   cfg.Sweeper.LockTTL,
	})

	// 9. Start Sweeper
	done := make(chan struct{})
	go func() {
		sweeperUC.Run(ctx)
		close(done)
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	<-done
	appLogger.Info("Sweeper stopped")
}
