package infra

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
)

type PostgresClient struct {
	DB *gorm.DB
}

func InitPostgresClient(cfg *config.EnvConfig) *PostgresClient {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.Postgres.HOST,
		cfg.Postgres.Username,
		cfg.Postgres.Password,
		cfg.Postgres.Database,
		cfg.Postgres.Port,
	)

	client, err := NewPostgresClient(dsn)
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}

	log.Println("Connected to Postgres:", cfg.Postgres.Database+" on "+cfg.Postgres.HOST)
	return client
}

// NewPostgresClient opens dsn and migrates the tracked job schema.
func NewPostgresClient(dsn string) (*PostgresClient, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.AutoMigrate(&entity.TrackedJob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tracked jobs: %w", err)
	}

	return &PostgresClient{DB: db}, nil
}
