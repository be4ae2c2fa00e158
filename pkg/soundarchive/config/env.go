package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads the configuration from environment variables.
//
// Server:
//
//	PORT, ENVIRONMENT, PUBLIC_URL
//
// Backend (identity and privileged access):
//
//	IDENTITY_MODE        gotrue | jwt | static
//	BACKEND_URL          identity backend project URL
//	BACKEND_ANON_KEY     public API key
//	BACKEND_SERVICE_KEY  privileged key; when empty admin features are disabled
//	JWT_SECRET, JWT_AUDIENCE
//	STATIC_TOKENS        token:id:email,... (development only)
//	ROLE_CACHE_SIZE, ROLE_CACHE_TTL
//
// Database:
//
//	DATABASE_URL  "memory" or "postgresql://..."
//	DB_SCHEMA
//
// Storage:
//
//	STORAGE_TYPE             memory | fs | s3
//	STORAGE_BUCKET, STORAGE_PUBLIC_BASE_URL, STORAGE_SIGNING_KEY
//	STORAGE_BASE_DIR         fs only
//	AWS_S3_*, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
//
// Limits and URLs:
//
//	MAX_AUDIO_MB, MAX_IMAGE_MB, MAX_VIDEO_MB, MAX_TITLE_LENGTH
//	URL_DEFAULT_TTL, URL_MIN_TTL, URL_MAX_TTL, URL_ANONYMOUS_MAX_TTL, URL_MAX_KEYS
//	RATE_LIMIT_PER_MINUTE, RATE_LIMIT_BURST, ALLOWED_ORIGINS
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return nil
	}
}

// EnvUsage renders the variable list for --help output.
func EnvUsage() string {
	var cfg ServerConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
