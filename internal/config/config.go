package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Client side
	APIBaseURL           string
	AccessToken          string
	ViewerID             int64
	RequestTimeout       time.Duration
	ViewRefreshInterval  time.Duration
	ViewRefreshBatchSize int

	// Reference backend
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL string

	ServerPort string

	JWTSecret         string
	AccessTokenMaxAge int

	LogFormat string
	LogLevel  string

	// OtelEndpoint is the OTLP/gRPC collector address; empty disables export.
	OtelEndpoint string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		slog.Debug("No .env file found or error loading it, relying on environment variables")
	}

	accessTokenMaxAge, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_MAX_AGE"))
	if err != nil || accessTokenMaxAge <= 0 {
		accessTokenMaxAge = 900
	}

	requestTimeout, err := strconv.Atoi(os.Getenv("REQUEST_TIMEOUT_SECONDS"))
	if err != nil || requestTimeout <= 0 {
		requestTimeout = 10
	}

	refreshInterval, err := strconv.Atoi(os.Getenv("VIEW_REFRESH_INTERVAL_SECONDS"))
	if err != nil || refreshInterval <= 0 {
		refreshInterval = 30
	}

	batchSize, err := strconv.Atoi(os.Getenv("VIEW_REFRESH_BATCH_SIZE"))
	if err != nil || batchSize <= 0 {
		batchSize = 50
	}

	viewerID, err := strconv.ParseInt(os.Getenv("VIEWER_ID"), 10, 64)
	if err != nil || viewerID < 0 {
		viewerID = 0
	}

	apiBaseURL := os.Getenv("API_BASE_URL")
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:8080"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}

	return &Config{
		APIBaseURL:           apiBaseURL,
		AccessToken:          os.Getenv("ACCESS_TOKEN"),
		ViewerID:             viewerID,
		RequestTimeout:       time.Duration(requestTimeout) * time.Second,
		ViewRefreshInterval:  time.Duration(refreshInterval) * time.Second,
		ViewRefreshBatchSize: batchSize,

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		RedisURL: os.Getenv("REDIS_URL"),

		ServerPort: serverPort,

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenMaxAge: accessTokenMaxAge,

		LogFormat: logFormat,
		LogLevel:  os.Getenv("LOG_LEVEL"),

		OtelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

// UsePostgres reports whether relationships should be stored in postgres
// instead of memory.
func (c *Config) UsePostgres() bool {
	return c.DBHost != ""
}
