package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Server struct {
		Port string
	}
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	CORS struct {
		AllowDomains string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
	}
	S3 struct {
		Endpoint  string
		Region    string
		AccessKey string
		SecretKey string
	}
	Archive struct {
		Backend  string // "minio", "s3" or "" (disabled)
		Bucket   string
		MaxBytes int
	}
	Job struct {
		Timeout           time.Duration
		HeartbeatInterval time.Duration
		RecordTTL         time.Duration
		WaitDelay         time.Duration
		ChunkSize         int
		MaxLineSize       int
		StderrTailSize    int
		StoreRetries      uint
		CrawlCommand      []string
		CrawlWorkDir      string
		IndexCommand      []string
		IndexWorkDir      string
	}
	Chain struct {
		JobServiceURL  string
		FirstPollDelay time.Duration
		PollInterval   time.Duration
		PollJitter     float64
		MaxPolls       int
		RequestTimeout time.Duration
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
		Insecure     bool
	}

	Environment struct {
		Mode  string
		Group string
	}
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	config.Server.Port = getEnv("PORT", "5000")

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = getEnv("REDIS_HOST", "localhost")
	config.Redis.RedisPort = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", false)

	config.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	config.S3.Region = getEnv("S3_REGION", "garage")
	config.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	config.S3.SecretKey = os.Getenv("S3_SECRET_KEY")

	// Job output archive
	config.Archive.Backend = strings.ToLower(os.Getenv("ARCHIVE_BACKEND"))
	config.Archive.Bucket = getEnv("ARCHIVE_BUCKET", "job-logs")
	config.Archive.MaxBytes = getEnvInt("ARCHIVE_MAX_BYTES", 8<<20) // 8MB

	// Supervisor
	config.Job.Timeout = getEnvSeconds("JOB_TIMEOUT_SECONDS", 7200*time.Second)
	config.Job.HeartbeatInterval = getEnvSeconds("HEARTBEAT_INTERVAL_SECONDS", 30*time.Second)
	config.Job.RecordTTL = getEnvSeconds("JOB_RECORD_TTL_SECONDS", 7200*time.Second)
	config.Job.WaitDelay = getEnvSeconds("JOB_WAIT_DELAY_SECONDS", 5*time.Second)
	config.Job.ChunkSize = getEnvInt("JOB_STREAM_CHUNK_SIZE", 4096)
	config.Job.MaxLineSize = getEnvInt("JOB_MAX_LINE_SIZE", 64*1024)
	config.Job.StderrTailSize = getEnvInt("JOB_STDERR_TAIL_SIZE", 16*1024)
	config.Job.StoreRetries = uint(getEnvInt("JOB_STORE_RETRIES", 5))
	config.Job.CrawlCommand = strings.Fields(getEnv("CRAWL_COMMAND", "python crawling/crawl.py"))
	config.Job.CrawlWorkDir = os.Getenv("CRAWL_WORKDIR")
	config.Job.IndexCommand = strings.Fields(getEnv("INDEX_COMMAND", "python mongo_to_elastic.py"))
	config.Job.IndexWorkDir = os.Getenv("INDEX_WORKDIR")

	// Chain consumer
	config.Chain.JobServiceURL = strings.TrimRight(getEnv("JOB_SERVICE_URL", "http://localhost:5000"), "/")
	config.Chain.FirstPollDelay = getEnvSeconds("CHAIN_FIRST_POLL_DELAY_SECONDS", 10*time.Second)
	config.Chain.PollInterval = getEnvSeconds("CHAIN_POLL_INTERVAL_SECONDS", 30*time.Second)
	config.Chain.MaxPolls = getEnvInt("CHAIN_MAX_POLLS", 480)
	config.Chain.RequestTimeout = getEnvSeconds("CHAIN_REQUEST_TIMEOUT_SECONDS", 30*time.Second)
	if jitter, err := strconv.ParseFloat(os.Getenv("CHAIN_POLL_JITTER"), 64); err == nil && jitter >= 0 && jitter < 1 {
		config.Chain.PollJitter = jitter
	} else {
		config.Chain.PollJitter = 0.2
	}

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
		config.Grafana.Insecure = true
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "search-engine-jobs")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")
	config.Environment.Group = getEnv("GROUP_NAME", "local")

	return &config
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

// getEnvSeconds reads a whole number of seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return time.Duration(val) * time.Second
}
