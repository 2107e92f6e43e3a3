package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（デイリートレンドキャッシュ / 追加済みURLレジストリ）
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Scan
	ScanMinContentLen     int           // これ未満の本文長の投稿はスキップ（境界値は通過）
	ScanIdentityPrefixLen int           // identity導出に使う本文プレフィックス長
	ScanDebounce          time.Duration // 再スキャン要求の合流間隔
	ScanInterval          time.Duration // ワーカーの巡回間隔
	ScanMaxConcurrent     int           // ページスキャンの最大並列数

	// Save control
	SaveConfirmationTTL time.Duration // 保存完了表示からIdle復帰までの時間

	// Collaborator
	CollabEndpoint string // 保存アクションの送信先。空の場合は自サービスのアイデアAPI

	// Rate Limit
	RateLimitGeneral int
	RateLimitScan    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.ScanMinContentLen = getEnvInt("SCAN_MIN_CONTENT_LEN", 10)
	cfg.ScanIdentityPrefixLen = getEnvInt("SCAN_IDENTITY_PREFIX_LEN", 50)
	cfg.ScanDebounce = getEnvDuration("SCAN_DEBOUNCE", 500*time.Millisecond)
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", 5*time.Minute)
	cfg.ScanMaxConcurrent = getEnvInt("SCAN_MAX_CONCURRENT", 10)
	cfg.SaveConfirmationTTL = getEnvDuration("SAVE_CONFIRMATION_TTL", 1500*time.Millisecond)
	cfg.CollabEndpoint = getEnvString("COLLAB_ENDPOINT", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitScan = getEnvInt("RATE_LIMIT_SCAN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
