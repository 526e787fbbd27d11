package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"baddebt_engine/internal/config/connections/mongo"
	"baddebt_engine/internal/config/connections/postgres"
	"baddebt_engine/internal/config/connections/s3"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Format string
}

// Settings is everything read from the environment, before any connection
// is opened.
type Settings struct {
	Port string
	Log  LogConfig

	Postgres postgres.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	S3       s3.ConnectionInfo

	LoansTable    string
	PaymentsTable string
	ReportsPrefix string
}

type Config struct {
	Settings

	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
}

// LoadSettings reads .env when present, then the process environment.
func LoadSettings() Settings {
	_ = godotenv.Load()

	return Settings{
		Port: getenv("SERVER_PORT", "8070"),
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
		Postgres: postgres.ConnectionInfo{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DB:       getenv("PG_DB", "microfinance"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Mongo: mongo.ConnectionInfo{
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", "root"),
			Password:   getenv("MONGO_PASSWORD", "secret"),
			Host:       getenv("MONGO_HOST", "127.0.0.1"),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "baddebt"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
		},
		S3: s3.ConnectionInfo{
			Endpoint:  strings.TrimPrefix(strings.TrimPrefix(getenv("AWS_ENDPOINT", "localhost:9000"), "http://"), "https://"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", "exports"),
			UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
		},
		LoansTable:    getenv("PG_LOANS_TABLE", "loans"),
		PaymentsTable: getenv("PG_PAYMENTS_TABLE", "payments"),
		ReportsPrefix: getenv("REPORTS_PREFIX", "reports"),
	}
}

// NewLogger builds a production (json) or development (console) zap logger
// at the configured level.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}

// Connect opens S3, Mongo and Postgres in that order. Connections already
// opened are closed when a later one fails.
func Connect(ctx context.Context, st Settings) (*Config, error) {
	s3c, err := s3.NewConnection(st.S3)
	if err != nil {
		return nil, eris.Wrap(err, "s3 connect")
	}

	mg, err := mongo.NewConnection(ctx, st.Mongo)
	if err != nil {
		return nil, eris.Wrap(err, "mongo connect")
	}

	pg, err := postgres.NewConnection(ctx, st.Postgres)
	if err != nil {
		_ = mg.Close(ctx)
		return nil, eris.Wrap(err, "postgres connect")
	}

	return &Config{
		Settings: st,
		S3:       s3c,
		Mongo:    mg,
		Postgres: pg,
	}, nil
}

func (c *Config) Close(ctx context.Context) {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Close(ctx)
	}
}

func (c *Config) PingPostgres(ctx context.Context) error {
	if c.Postgres == nil || c.Postgres.Pool == nil {
		return errors.New("postgres not initialized")
	}
	return c.Postgres.Pool.Ping(ctx)
}

func (c *Config) PingMongo(ctx context.Context) error {
	if c.Mongo == nil || c.Mongo.Client == nil {
		return errors.New("mongo not initialized")
	}
	return c.Mongo.Client.Ping(ctx, nil)
}

func (c *Config) PingS3(ctx context.Context) error {
	if c.S3 == nil || c.S3.Client == nil {
		return errors.New("s3 not initialized")
	}
	ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q not found", c.S3.Bucket)
	}
	return nil
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if err := c.PingPostgres(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres: %w", err))
	}
	if err := c.PingMongo(ctx); err != nil {
		errs = append(errs, fmt.Errorf("mongo: %w", err))
	}
	if err := c.PingS3(ctx); err != nil {
		errs = append(errs, fmt.Errorf("s3: %w", err))
	}

	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
