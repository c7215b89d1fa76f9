package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	Database          DatabaseConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Club              ClubConfig
	MercadoPago       MercadoPagoConfig
	SMTP              SMTPConfig
	SMS               SMSConfig
	Dues              DuesConfig
	Jobs              JobsConfig
	Telemetry         TelemetryConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type LogConfig struct {
	Level  string
	Format string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type ClubConfig struct {
	Code         string
	Name         string
	Timezone     string
	Location     *time.Location
	Currency     string
	FeeTablePath string
	DueDay       int
}

type MercadoPagoConfig struct {
	AccessToken               string
	WebhookSecret             string
	BaseURL                   string
	Sandbox                   bool
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	NotificationURL           string
	SuccessURL                string
	FailureURL                string
	LinkExpiry                time.Duration
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string
}

type SMSConfig struct {
	BaseURL     string
	AccountSID  string
	AuthToken   string
	From        string
	HTTPTimeout time.Duration
}

func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

type DuesConfig struct {
	MaxReminders          int32
	ReminderInterval      time.Duration
	ReminderBatchSize     int32
	OverdueBatchSize      int32
	GenerationBatchSize   int32
	NotificationTimeout   time.Duration
	NotificationRateLimit float64
	NotificationBurst     int
}

type JobsConfig struct {
	OverdueSweepCron      string
	ReminderDispatchCron  string
	MonthlyGenerationCron string
}

type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	database, err := loadDatabase()
	if err != nil {
		return nil, err
	}

	timezone := getEnv("CLUB_TIMEZONE", "America/Argentina/Buenos_Aires")
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLUB_TIMEZONE %q: %w", timezone, err)
	}

	dueDay := getIntEnv("CLUB_DUE_DAY", 15)
	if dueDay < 1 || dueDay > 31 {
		return nil, fmt.Errorf("CLUB_DUE_DAY must be between 1 and 31, got %d", dueDay)
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "club-dues-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Database: database,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Club: ClubConfig{
			Code:         strings.ToUpper(getEnv("CLUB_CODE", "CLUB")),
			Name:         getEnv("CLUB_NAME", "Club"),
			Timezone:     timezone,
			Location:     location,
			Currency:     strings.ToUpper(getEnv("CLUB_CURRENCY", "ARS")),
			FeeTablePath: getEnv("CLUB_FEE_TABLE_PATH", ""),
			DueDay:       dueDay,
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:               getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			WebhookSecret:             getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
			BaseURL:                   getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
			Sandbox:                   getBoolEnv("MERCADOPAGO_SANDBOX", false),
			SignatureToleranceSeconds: int64(getIntEnv("MERCADOPAGO_SIGNATURE_TOLERANCE_SECONDS", 0)),
			HTTPTimeout:               getSecondsEnv("MERCADOPAGO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			NotificationURL:           getEnv("MERCADOPAGO_NOTIFICATION_URL", ""),
			SuccessURL:                getEnv("MERCADOPAGO_SUCCESS_URL", ""),
			FailureURL:                getEnv("MERCADOPAGO_FAILURE_URL", ""),
			LinkExpiry:                getHoursEnv("MERCADOPAGO_LINK_EXPIRY_HOURS", 0),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getIntEnv("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			From:      getEnv("SMTP_FROM", "no-reply@club.local"),
			TLSPolicy: getEnv("SMTP_TLS_POLICY", "opportunistic"),
		},
		SMS: SMSConfig{
			BaseURL:     getEnv("SMS_BASE_URL", "https://api.twilio.com"),
			AccountSID:  getEnv("SMS_ACCOUNT_SID", ""),
			AuthToken:   getEnv("SMS_AUTH_TOKEN", ""),
			From:        getEnv("SMS_FROM", ""),
			HTTPTimeout: getSecondsEnv("SMS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Dues: DuesConfig{
			MaxReminders:          int32(getIntEnv("DUES_MAX_REMINDERS", 5)),
			ReminderInterval:      getHoursEnv("DUES_REMINDER_INTERVAL_HOURS", 48*time.Hour),
			ReminderBatchSize:     int32(getIntEnv("DUES_REMINDER_BATCH_SIZE", 100)),
			OverdueBatchSize:      int32(getIntEnv("DUES_OVERDUE_BATCH_SIZE", 500)),
			GenerationBatchSize:   int32(getIntEnv("DUES_GENERATION_BATCH_SIZE", 500)),
			NotificationTimeout:   getSecondsEnv("DUES_NOTIFICATION_TIMEOUT_SECONDS", 15*time.Second),
			NotificationRateLimit: getFloatEnv("DUES_NOTIFICATION_RATE_PER_SECOND", 5),
			NotificationBurst:     getIntEnv("DUES_NOTIFICATION_BURST", 5),
		},
		Jobs: JobsConfig{
			OverdueSweepCron:      getEnv("JOBS_OVERDUE_SWEEP_CRON", "0 6 * * *"),
			ReminderDispatchCron:  getEnv("JOBS_REMINDER_DISPATCH_CRON", "0 10 * * *"),
			MonthlyGenerationCron: getEnv("JOBS_MONTHLY_GENERATION_CRON", "0 2 * * *"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio:  getFloatEnv("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
	}, nil
}

func loadDatabase() (DatabaseConfig, error) {
	cfg := DatabaseConfig{
		Driver:          strings.ToLower(getEnv("DATABASE_DRIVER", "mysql")),
		MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		AutoMigrate:     getBoolEnv("DATABASE_AUTO_MIGRATE", false),
	}

	switch cfg.Driver {
	case "mysql":
		cfg.DSN = os.Getenv("MYSQL_DSN")
		if cfg.DSN == "" {
			return cfg, errors.New("MYSQL_DSN environment variable is required")
		}
	case "sqlite3":
		cfg.DSN = getEnv("SQLITE_DSN", "file:club_dues.db?_foreign_keys=on")
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	default:
		return cfg, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Driver)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getHoursEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if hours, err := strconv.Atoi(value); err == nil {
			return time.Duration(hours) * time.Hour
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
