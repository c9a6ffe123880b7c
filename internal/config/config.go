package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"lmp-be/internal/transport"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultMinOrderQuantity = 10

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string

	CORSAllowedOrigins []string
	// TrustedProxies are the only peers whose X-Forwarded-For is read.
	TrustedProxies transport.Proxies

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	TurnstileSecret string

	// ServiceAreaZips overrides the built-in delivery zone when non-empty.
	ServiceAreaZips  []string
	MinOrderQuantity int

	AMQPURL              string
	NotificationExchange string
	MailFrom             string

	AccountingSyncURL string
}

type serviceAreaFile struct {
	Zips []string `yaml:"zips"`
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    envOr("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		CORSAllowedOrigins: splitList(strings.Split(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",")),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  os.Getenv("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   os.Getenv("CHECKOUT_CANCEL_URL"),

		TurnstileSecret: os.Getenv("TURNSTILE_SECRET_KEY"),

		MinOrderQuantity: defaultMinOrderQuantity,

		AMQPURL:              os.Getenv("AMQP_URL"),
		NotificationExchange: envOr("NOTIFICATION_EXCHANGE", "notifications_fanout"),
		MailFrom:             envOr("MAIL_FROM", "orders@localmealprep.com"),

		AccountingSyncURL: os.Getenv("ACCOUNTING_SYNC_URL"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	if raw := os.Getenv("MIN_ORDER_QUANTITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Fatalf("invalid MIN_ORDER_QUANTITY %q", raw)
		}
		cfg.MinOrderQuantity = n
	}

	proxies, err := transport.ParseProxies(splitList(strings.Split(os.Getenv("TRUSTED_PROXIES"), ",")))
	if err != nil {
		log.Fatalf("invalid TRUSTED_PROXIES: %v", err)
	}
	cfg.TrustedProxies = proxies

	zips, err := loadServiceArea(os.Getenv("SERVICE_AREA_ZIPS"), os.Getenv("SERVICE_AREA_FILE"))
	if err != nil {
		log.Fatalf("failed to load service area: %v", err)
	}
	cfg.ServiceAreaZips = zips

	return cfg
}

// loadServiceArea resolves the zone override. The comma list wins over the file.
func loadServiceArea(list, path string) ([]string, error) {
	if list != "" {
		return splitList(strings.Split(list, ",")), nil
	}
	if path == "" {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var f serviceAreaFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return splitList(f.Zips), nil
}

// splitList trims entries and drops blanks.
func splitList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
