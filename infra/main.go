package infra

import (
	"context"
	"errors"
	"log"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/infra/produce"
)

type Infra struct {
	Redis      *RedisClient
	Postgres   *PostgresClient
	Logger     *LoggerClient
	Telemetry  *TelemetryClient
	RabbitMQ   *RabbitMQClient
	Produce    *produce.Produce
	JobService *JobServiceClient
	Archive    LogArchive
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	telemetry, err := InitTelemetryClient(context.Background(), cfg.EnvConfig)
	if err != nil {
		log.Fatalf("Telemetry initialization failed: %v", err)
	}

	var provider otellog.LoggerProvider
	if telemetry != nil {
		provider = telemetry.LoggerProvider
	}
	logger := InitLoggerClient(cfg.EnvConfig, provider)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	jobService := InitJobServiceClient(cfg.EnvConfig)
	if jobService == nil {
		panic("Failed to initialize Job service client")
	}

	infraInstance = &Infra{
		Redis:      redis,
		Postgres:   postgres,
		Logger:     logger,
		Telemetry:  telemetry,
		RabbitMQ:   rabbitMQ,
		Produce:    produceService,
		JobService: jobService,
		Archive:    InitLogArchive(cfg.EnvConfig),
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}

// Close releases connections and flushes telemetry.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.RabbitMQ != nil {
		errs = append(errs, i.RabbitMQ.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.Postgres != nil {
		if sqlDB, err := i.Postgres.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	errs = append(errs, i.Telemetry.Shutdown(ctx))
	return errors.Join(errs...)
}
