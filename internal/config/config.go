package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything read from the environment at startup
type Config struct {
	Env         string
	Port        string
	FrontendURL string
	PublicURL   string
	ShopName    string
	CORSOrigins []string

	DB DBConfig

	JWTSecret           string
	JWTAccessDuration   time.Duration
	JWTRefreshDuration  time.Duration
	BootstrapAdminEmail string
	BootstrapAdminPass  string

	SMS     SMSConfig
	Email   EmailConfig
	Storage StorageConfig
	Payment PaymentConfig

	OpenAIAPIKey string
	OpenAIModel  string

	Telemetry TelemetryConfig

	ShippingFlatRate      int64
	FreeShippingThreshold int64
}

// DBConfig describes the PostgreSQL connection
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN renders a libpq style connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

// SMSConfig configures the SMS gateway client
type SMSConfig struct {
	BaseURL     string
	APIKey      string
	Sender      string
	MaxAttempts int
	RatePerSec  float64
}

// Enabled reports whether SMS credentials are present
func (c SMSConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// EmailConfig configures SES and the SMTP fallback
type EmailConfig struct {
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	SESFrom      string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// SESConfigured reports whether SES credentials are present
func (c EmailConfig) SESConfigured() bool {
	return c.AWSRegion != "" && c.AWSAccessKey != "" && c.AWSSecretKey != "" && c.SESFrom != ""
}

// SMTPConfigured reports whether SMTP credentials are present
func (c EmailConfig) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPFrom != ""
}

// StorageConfig configures S3 compatible object storage for product images
type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

// PaymentConfig configures the card payment gateway
type PaymentConfig struct {
	Provider      string
	BaseURL       string
	MerchantID    string
	APIKey        string
	WebhookSecret string
	ReturnURL     string
}

// Enabled reports whether the gateway is configured
func (c PaymentConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// TelemetryConfig configures the OTLP trace exporter
type TelemetryConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
}

// CallbackURL is the public URL the gateway posts payment results to
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/api/v1/payments/callback"
}

// PaymentReturnURL is where the gateway sends the customer back
func (c *Config) PaymentReturnURL() string {
	if c.Payment.ReturnURL != "" {
		return c.Payment.ReturnURL
	}
	return strings.TrimRight(c.PublicURL, "/") + "/api/v1/payments/return"
}

// Load reads .env (if present) and the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	return &Config{
		Env:         getEnvOrDefault("ENV", "production"),
		Port:        getEnvOrDefault("PORT", "8080"),
		FrontendURL: strings.TrimRight(getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"), "/"),
		PublicURL:   getEnvOrDefault("PUBLIC_URL", "http://localhost:8080"),
		ShopName:    getEnvOrDefault("SHOP_NAME", "KidShop"),
		CORSOrigins: getList("CORS_ALLOWED_ORIGINS"),
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnvOrDefault("DB_NAME", "kidshop"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
			TimeZone: getEnvOrDefault("DB_TIMEZONE", "Asia/Tbilisi"),
		},
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTAccessDuration:   getDuration("JWT_ACCESS_DURATION", 15*time.Minute),
		JWTRefreshDuration:  getDuration("JWT_REFRESH_DURATION", 7*24*time.Hour),
		BootstrapAdminEmail: os.Getenv("ADMIN_EMAIL"),
		BootstrapAdminPass:  os.Getenv("ADMIN_PASSWORD"),
		SMS: SMSConfig{
			BaseURL:     os.Getenv("SMS_BASE_URL"),
			APIKey:      os.Getenv("SMS_API_KEY"),
			Sender:      getEnvOrDefault("SMS_SENDER", "KidShop"),
			MaxAttempts: getInt("SMS_MAX_ATTEMPTS", 3),
			RatePerSec:  getFloat("SMS_RATE_PER_SEC", 5),
		},
		Email: EmailConfig{
			AWSRegion:    os.Getenv("AWS_REGION"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SESFrom:      os.Getenv("SES_FROM_EMAIL"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     os.Getenv("SMTP_PORT"),
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			SMTPFrom:     os.Getenv("FROM_EMAIL"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnvOrDefault("S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		Payment: PaymentConfig{
			Provider:      getEnvOrDefault("PAYMENT_PROVIDER", "gateway"),
			BaseURL:       os.Getenv("PAYMENT_BASE_URL"),
			MerchantID:    os.Getenv("PAYMENT_MERCHANT_ID"),
			APIKey:        os.Getenv("PAYMENT_API_KEY"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			ReturnURL:     os.Getenv("PAYMENT_RETURN_URL"),
		},
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:           getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		Telemetry: TelemetryConfig{
			Enabled:        getBool("ENABLE_TELEMETRY"),
			Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "kidshop-api"),
			ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", "dev"),
		},
		ShippingFlatRate:      int64(getInt("SHIPPING_FLAT_RATE", 500)),
		FreeShippingThreshold: int64(getInt("FREE_SHIPPING_THRESHOLD", 15000)),
	}
}

// IsDevelopment reports whether ENV=development
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return v
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
