package config

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// CronSpec 报告采集周期；GaugeCronSpec 测站刷新周期
	CronSpec      string
	GaugeCronSpec string

	// PassMode 抓取失败时的处理方式：drop / fallback
	PassMode     string
	FetchTimeout time.Duration

	// SourcesFile 为空时使用内置站点表
	SourcesFile       string
	BrowserScraperURL string
	SummaryMarker     string

	USGSBaseURL string
	NOAABaseURL string

	// 全站 Basic Auth，两者都配置时才启用
	BasicAuthUser string
	BasicAuthPass string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		AppPort:           getEnv("APP_PORT", "9000"),
		PostgresDSN:       getEnv("POSTGRES_DSN", "host=localhost user=riverreport password=riverreport dbname=riverreport port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		CronSpec:          getEnv("CRON_SPEC", "*/15 * * * *"),
		GaugeCronSpec:     getEnv("GAUGE_CRON_SPEC", "*/15 * * * *"),
		PassMode:          getEnv("PASS_MODE", "drop"),
		FetchTimeout:      getDuration("FETCH_TIMEOUT", 10*time.Second),
		SourcesFile:       os.Getenv("SOURCES_FILE"),
		BrowserScraperURL: os.Getenv("BROWSER_SCRAPER_URL"),
		SummaryMarker:     getEnvAllowEmpty("SUMMARY_MARKER", "🎣"),
		USGSBaseURL:       getEnv("USGS_BASE_URL", "https://waterservices.usgs.gov"),
		NOAABaseURL:       getEnv("NOAA_BASE_URL", "https://api.weather.gov"),
		BasicAuthUser:     os.Getenv("APP_BASIC_USER"),
		BasicAuthPass:     os.Getenv("APP_BASIC_PASS"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	slog.Info("config loaded",
		"port", cfg.AppPort,
		"cron", cfg.CronSpec,
		"gaugeCron", cfg.GaugeCronSpec,
		"mode", cfg.PassMode,
		"fetchTimeout", cfg.FetchTimeout,
		"sourcesFile", cfg.SourcesFile,
		"basicAuth", cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvAllowEmpty 显式设置为空字符串时返回空，用于关闭摘要前缀之类的开关
func getEnvAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// getDuration 解析 10s / 1m 这类写法，非法值回落到默认值
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
