package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                  string
	AppEnv                   string
	AppPort                  string
	DatabaseURL              string
	DatabaseMaxOpenConns     int
	DatabaseMaxIdleConns     int
	DatabaseConnMaxLifetime  time.Duration
	RedisURL                 string
	NATSURL                  string
	EventsChannel            string
	JWTSecret                string
	CloudinaryCloudName      string
	CloudinaryAPIKey         string
	CloudinaryAPISecret      string
	CloudinaryUploadFolder   string
	SendGridAPIKey           string
	MailFromName             string
	MailFromEmail            string
	PaystackSecretKey        string
	PaystackBaseURL          string
	PaystackTimeout          time.Duration
	CertificateIssuer        string
	CertificateUploadTimeout time.Duration
	CertificateConcurrency   int
	CertificateLockTTL       time.Duration
	CertificateAutoIssue     string
	CertificateSweepTimeout  time.Duration
	CertificateSweepBatch    int
	VerifyRateLimit          int
	CORSAllowOrigins         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LEARNHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Learnhub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("events.channel", "learnhub:events")
	v.SetDefault("cloudinary.folder", "learnhub")
	v.SetDefault("mail.from_name", "Learnhub")
	v.SetDefault("mail.from_email", "no-reply@learnhub.local")
	v.SetDefault("paystack.base_url", "https://api.paystack.co")
	v.SetDefault("paystack.timeout", "10s")
	v.SetDefault("certificate.issuer", "Learnhub")
	v.SetDefault("certificate.upload_timeout", "30s")
	v.SetDefault("certificate.concurrency", 4)
	v.SetDefault("certificate.lock_ttl", "2m")
	v.SetDefault("certificate.auto_issue_cron", "")
	v.SetDefault("certificate.sweep_timeout", "5m")
	v.SetDefault("certificate.sweep_batch", 200)
	v.SetDefault("ratelimit.verify_per_minute", 30)
	v.SetDefault("cors.allow_origins", "*")

	durations := map[string]time.Duration{}
	for _, key := range []string{"database.conn_max_lifetime", "paystack.timeout", "certificate.upload_timeout", "certificate.lock_ttl", "certificate.sweep_timeout"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                  v.GetString("app.name"),
		AppEnv:                   v.GetString("app.env"),
		AppPort:                  v.GetString("app.port"),
		DatabaseURL:              v.GetString("database.url"),
		DatabaseMaxOpenConns:     v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:     v.GetInt("database.max_idle_conns"),
		DatabaseConnMaxLifetime:  durations["database.conn_max_lifetime"],
		RedisURL:                 v.GetString("redis.url"),
		NATSURL:                  v.GetString("nats.url"),
		EventsChannel:            v.GetString("events.channel"),
		JWTSecret:                v.GetString("jwt.secret"),
		CloudinaryCloudName:      v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:         v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:      v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:   v.GetString("cloudinary.folder"),
		SendGridAPIKey:           v.GetString("sendgrid.api_key"),
		MailFromName:             v.GetString("mail.from_name"),
		MailFromEmail:            v.GetString("mail.from_email"),
		PaystackSecretKey:        v.GetString("paystack.secret_key"),
		PaystackBaseURL:          v.GetString("paystack.base_url"),
		PaystackTimeout:          durations["paystack.timeout"],
		CertificateIssuer:        v.GetString("certificate.issuer"),
		CertificateUploadTimeout: durations["certificate.upload_timeout"],
		CertificateConcurrency:   v.GetInt("certificate.concurrency"),
		CertificateLockTTL:       durations["certificate.lock_ttl"],
		CertificateAutoIssue:     strings.TrimSpace(v.GetString("certificate.auto_issue_cron")),
		CertificateSweepTimeout:  durations["certificate.sweep_timeout"],
		CertificateSweepBatch:    v.GetInt("certificate.sweep_batch"),
		VerifyRateLimit:          v.GetInt("ratelimit.verify_per_minute"),
		CORSAllowOrigins:         v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.CertificateConcurrency <= 0 {
		cfg.CertificateConcurrency = 4
	}

	if cfg.CertificateSweepBatch <= 0 {
		cfg.CertificateSweepBatch = 200
	}

	return cfg, nil
}
