package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	LogLevel    string
	ReportsDir  string
	ReportFont  string

	BotToken     string
	BotRateLimit float64

	ProviderEndpoint     string
	NotificationEndpoint string
	NotificationKey      string
	BroadcastWorkers     int

	ScanTimeout          time.Duration
	LatencyThreshold     time.Duration
	CheckClickjacking    bool
	CheckCSP             bool
	CSPSeverity          string
	CheckMetaDescription bool
	WalletCost           int
}

func defaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("listen_addr", ":10000")
	v.SetDefault("log_level", "info")
	v.SetDefault("reports_dir", "static")
	v.SetDefault("database_sslmode", "require")
	v.SetDefault("bot_rate_limit", 0.5)
	v.SetDefault("provider_endpoint", "https://eth.llamarpc.com")
	v.SetDefault("broadcast_workers", 2)
	v.SetDefault("scan_timeout", 10*time.Second)
	v.SetDefault("latency_threshold", 1500*time.Millisecond)
	v.SetDefault("check_clickjacking", true)
	v.SetDefault("check_csp", true)
	v.SetDefault("csp_severity", "CRITICAL")
	v.SetDefault("check_meta_description", true)
	v.SetDefault("wallet_cost", 250)
}

// Load reads .env, an optional vanguard.yaml and the environment, in that order
// of increasing precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetConfigName("vanguard")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Env:                  v.GetString("app_env"),
		ListenAddr:           v.GetString("listen_addr"),
		LogLevel:             v.GetString("log_level"),
		ReportsDir:           v.GetString("reports_dir"),
		ReportFont:           v.GetString("report_font"),
		BotToken:             v.GetString("bot_token"),
		BotRateLimit:         v.GetFloat64("bot_rate_limit"),
		ProviderEndpoint:     v.GetString("provider_endpoint"),
		NotificationEndpoint: v.GetString("notification_endpoint"),
		NotificationKey:      v.GetString("notification_key"),
		BroadcastWorkers:     v.GetInt("broadcast_workers"),
		ScanTimeout:          v.GetDuration("scan_timeout"),
		LatencyThreshold:     v.GetDuration("latency_threshold"),
		CheckClickjacking:    v.GetBool("check_clickjacking"),
		CheckCSP:             v.GetBool("check_csp"),
		CSPSeverity:          strings.ToUpper(v.GetString("csp_severity")),
		CheckMetaDescription: v.GetBool("check_meta_description"),
		WalletCost:           v.GetInt("wallet_cost"),
	}

	dsn, err := withSSLMode(v.GetString("database_url"), v.GetString("database_sslmode"))
	if err != nil {
		return cfg, fmt.Errorf("DATABASE_URL: %w", err)
	}
	cfg.DatabaseURL = dsn
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

// withSSLMode adds sslmode to a URL-form DSN that does not already carry one.
func withSSLMode(dsn, mode string) (string, error) {
	if dsn == "" || mode == "" {
		return dsn, nil
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("sslmode") != "" {
		return dsn, nil
	}
	q.Set("sslmode", mode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
