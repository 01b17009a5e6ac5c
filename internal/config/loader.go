package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EASYBET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EASYBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Authority, "EASYBET_ENGINE_AUTHORITY")
	setStr(&cfg.Engine.Escrow, "EASYBET_ENGINE_ESCROW")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "EASYBET_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "EASYBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EASYBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EASYBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EASYBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EASYBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EASYBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EASYBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EASYBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EASYBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EASYBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "EASYBET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "EASYBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EASYBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EASYBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EASYBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EASYBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EASYBET_REDIS_TLS_ENABLED")
	setDur(&cfg.Redis.SnapshotTTL, "EASYBET_REDIS_SNAPSHOT_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EASYBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EASYBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EASYBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "EASYBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EASYBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EASYBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EASYBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EASYBET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "EASYBET_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "EASYBET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "EASYBET_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "EASYBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "EASYBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EASYBET_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "EASYBET_PIPELINE_ENABLED")
	setDur(&cfg.Pipeline.ArchiveInterval, "EASYBET_PIPELINE_ARCHIVE_INTERVAL")

	// ── Top level ──
	setStr(&cfg.Mode, "EASYBET_MODE")
	setStr(&cfg.LogLevel, "EASYBET_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
