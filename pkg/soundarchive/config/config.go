package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/identity"
	"github.com/tendant/sound-archive/pkg/soundarchive/presigned"
	"github.com/tendant/sound-archive/pkg/soundarchive/repo/memory"
	repopg "github.com/tendant/sound-archive/pkg/soundarchive/repo/postgres"
	fsstorage "github.com/tendant/sound-archive/pkg/soundarchive/storage/fs"
	memorystorage "github.com/tendant/sound-archive/pkg/soundarchive/storage/memory"
	s3storage "github.com/tendant/sound-archive/pkg/soundarchive/storage/s3"
)

// Identity modes
const (
	IdentityGoTrue = "gotrue"
	IdentityJWT    = "jwt"
	IdentityStatic = "static"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
// WithEnv resets every field it knows about, so it should come first.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		PublicURL:   "http://localhost:8080",
		Backend: BackendConfig{
			IdentityMode:  IdentityStatic,
			JWTAudience:   "authenticated",
			RoleCacheSize: 1024,
			RoleCacheTTL:  30 * time.Second,
			Timeout:       10 * time.Second,
		},
		Database: DatabaseConfig{Schema: "public"},
		Storage: StorageConfig{
			Type:      "memory",
			Bucket:    "contenido",
			BaseDir:   "./data/storage",
			S3Region:  "us-east-1",
			FilesRoot: "/files",
		},
		Limits: LimitsConfig{
			MaxAudioMB:     50,
			MaxImageMB:     5,
			MaxVideoMB:     50,
			MaxTitleLength: 300,
			WriteTimeout:   2 * time.Minute,
		},
		URLs: URLConfig{
			DefaultTTL:      300 * time.Second,
			MinTTL:          30 * time.Second,
			MaxTTL:          24 * time.Hour,
			AnonymousMaxTTL: time.Hour,
			MaxKeys:         50,
			ProviderTimeout: 5 * time.Second,
			Concurrency:     8,
		},
		HTTP: HTTPConfig{
			RequestTimeout:    60 * time.Second,
			RateLimitPerMin:   120,
			RateLimitBurst:    20,
			EnableMetrics:     true,
		},
	}
}

// ServerConfig represents the archive server configuration
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	PublicURL   string `env:"PUBLIC_URL" env-default:"http://localhost:8080"`

	Backend  BackendConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Limits   LimitsConfig
	URLs     URLConfig
	HTTP     HTTPConfig

	signer *presigned.Signer
}

// BackendConfig selects how bearer credentials and roles are resolved.
type BackendConfig struct {
	IdentityMode string `env:"IDENTITY_MODE" env-default:"static"`
	URL          string `env:"BACKEND_URL"`
	AnonKey      string `env:"BACKEND_ANON_KEY"`
	// ServiceKey is the privileged key. Without it admin features are off.
	ServiceKey  string `env:"BACKEND_SERVICE_KEY"`
	JWTSecret   string `env:"JWT_SECRET"`
	JWTAudience string `env:"JWT_AUDIENCE" env-default:"authenticated"`
	// StaticTokens is "token:id:email" entries separated by commas.
	StaticTokens  string        `env:"STATIC_TOKENS"`
	RoleCacheSize int           `env:"ROLE_CACHE_SIZE" env-default:"1024"`
	RoleCacheTTL  time.Duration `env:"ROLE_CACHE_TTL" env-default:"30s"`
	Timeout       time.Duration `env:"BACKEND_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig points at the content table. An empty URL keeps records in memory.
type DatabaseConfig struct {
	URL    string `env:"DATABASE_URL"`
	Schema string `env:"DB_SCHEMA" env-default:"public"`
}

// StorageConfig selects the object store
type StorageConfig struct {
	Type          string `env:"STORAGE_TYPE" env-default:"memory"` // memory, fs, s3
	Bucket        string `env:"STORAGE_BUCKET" env-default:"contenido"`
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`
	SigningKey    string `env:"STORAGE_SIGNING_KEY"`
	FilesRoot     string `env:"STORAGE_FILES_ROOT" env-default:"/files"`

	BaseDir string `env:"STORAGE_BASE_DIR" env-default:"./data/storage"`

	S3Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	S3Endpoint        string `env:"AWS_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	S3EnableSSE       bool   `env:"AWS_S3_ENABLE_SSE" env-default:"false"`
	S3SSEAlgorithm    string `env:"AWS_S3_SSE_ALGORITHM" env-default:"AES256"`
	S3SSEKMSKeyID     string `env:"AWS_S3_SSE_KMS_KEY_ID"`
	S3CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// LimitsConfig bounds uploads
type LimitsConfig struct {
	MaxAudioMB     int64         `env:"MAX_AUDIO_MB" env-default:"50"`
	MaxImageMB     int64         `env:"MAX_IMAGE_MB" env-default:"5"`
	MaxVideoMB     int64         `env:"MAX_VIDEO_MB" env-default:"50"`
	MaxTitleLength int           `env:"MAX_TITLE_LENGTH" env-default:"300"`
	WriteTimeout   time.Duration `env:"UPLOAD_WRITE_TIMEOUT" env-default:"2m"`
}

// URLConfig is the access URL expiry policy
type URLConfig struct {
	DefaultTTL      time.Duration `env:"URL_DEFAULT_TTL" env-default:"300s"`
	MinTTL          time.Duration `env:"URL_MIN_TTL" env-default:"30s"`
	MaxTTL          time.Duration `env:"URL_MAX_TTL" env-default:"24h"`
	AnonymousMaxTTL time.Duration `env:"URL_ANONYMOUS_MAX_TTL" env-default:"1h"`
	MaxKeys         int           `env:"URL_MAX_KEYS" env-default:"50"`
	ProviderTimeout time.Duration `env:"URL_PROVIDER_TIMEOUT" env-default:"5s"`
	Concurrency     int           `env:"URL_CONCURRENCY" env-default:"8"`
}

// HTTPConfig covers the HTTP surface
type HTTPConfig struct {
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	RateLimitPerMin   int           `env:"RATE_LIMIT_PER_MINUTE" env-default:"120"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST" env-default:"20"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" env-separator:","`
	EnableMetrics     bool          `env:"ENABLE_METRICS" env-default:"true"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Backend.IdentityMode {
	case IdentityGoTrue:
		if c.Backend.URL == "" {
			return errors.New("backend_url is required for gotrue identity")
		}
		if c.Backend.AnonKey == "" {
			return errors.New("backend_anon_key is required for gotrue identity")
		}
	case IdentityJWT:
		if c.Backend.JWTSecret == "" {
			return errors.New("jwt_secret is required for jwt identity")
		}
	case IdentityStatic:
		if c.Environment == "production" {
			return errors.New("static identity is not allowed in production")
		}
	default:
		return fmt.Errorf("identity_mode must be one of gotrue, jwt, static (got %q)", c.Backend.IdentityMode)
	}
	if _, err := parseStaticTokens(c.Backend.StaticTokens); err != nil {
		return err
	}

	if c.Database.URL != "" && c.Database.URL != "memory" &&
		!strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("unsupported DATABASE_URL format: use 'memory' or 'postgresql://...'")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage_base_dir is required for fs storage")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Environment == "production" && c.Storage.Type != "s3" && c.Storage.SigningKey == "" {
		return errors.New("storage_signing_key is required in production")
	}

	if c.Limits.MaxAudioMB <= 0 || c.Limits.MaxImageMB <= 0 || c.Limits.MaxVideoMB <= 0 {
		return errors.New("upload limits must be positive")
	}
	return c.URLPolicy().Validate()
}

// AdminEnabled reports whether the privileged service key is configured.
func (c *ServerConfig) AdminEnabled() bool {
	return c.Backend.ServiceKey != ""
}

// UsesPostgres reports whether records live in Postgres
func (c *ServerConfig) UsesPostgres() bool {
	return c.Database.URL != "" && c.Database.URL != "memory"
}

// URLPolicy converts the URL settings
func (c *ServerConfig) URLPolicy() soundarchive.URLPolicy {
	return soundarchive.URLPolicy{
		Default:         c.URLs.DefaultTTL,
		Min:             c.URLs.MinTTL,
		Max:             c.URLs.MaxTTL,
		AnonymousMax:    c.URLs.AnonymousMaxTTL,
		MaxKeys:         c.URLs.MaxKeys,
		ProviderTimeout: c.URLs.ProviderTimeout,
		Concurrency:     c.URLs.Concurrency,
	}
}

// UploadLimits converts the limit settings
func (c *ServerConfig) UploadLimits() soundarchive.Limits {
	return soundarchive.Limits{
		MaxAudioBytes:  c.Limits.MaxAudioMB << 20,
		MaxImageBytes:  c.Limits.MaxImageMB << 20,
		MaxVideoBytes:  c.Limits.MaxVideoMB << 20,
		MaxTitleLength: c.Limits.MaxTitleLength,
	}
}

// MaxUploadBytes caps a whole request body: every part at its limit plus form overhead.
func (c *ServerConfig) MaxUploadBytes() int64 {
	l := c.UploadLimits()
	return l.MaxAudioBytes + l.MaxImageBytes + l.MaxVideoBytes + 1<<20
}

// Signer returns the presigned URL signer shared by the fs and memory stores.
func (c *ServerConfig) Signer() *presigned.Signer {
	if c.signer != nil {
		return c.signer
	}
	key := c.Storage.SigningKey
	if key == "" {
		key = "dev-signing-key"
		slog.Warn("STORAGE_SIGNING_KEY not set, using a development key")
	}
	c.signer = presigned.New(
		presigned.WithSecretKey(key),
		presigned.WithBaseURL(strings.TrimRight(c.PublicURL, "/")),
		presigned.WithPathRoot(c.Storage.FilesRoot),
	)
	return c.signer
}

// FilesHandler serves presigned downloads when the store keeps bytes locally.
// It returns nil for S3, whose URLs point at the bucket.
func (c *ServerConfig) FilesHandler(store soundarchive.ObjectStore) http.Handler {
	src, ok := store.(presigned.Source)
	if !ok {
		return nil
	}
	return presigned.Handler(c.Signer(), src)
}

// BuildClients creates every backend client the service needs.
func (c *ServerConfig) BuildClients(ctx context.Context) (soundarchive.BackendClients, error) {
	clients := soundarchive.BackendClients{Privileged: c.AdminEnabled()}

	repo, err := c.BuildRepository(ctx)
	if err != nil {
		return clients, fmt.Errorf("failed to build repository: %w", err)
	}
	clients.Content = repo
	clients.Users = repo

	store, err := c.BuildStore(ctx)
	if err != nil {
		return clients, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	clients.Store = store

	var roles soundarchive.RoleChecker = repo
	switch c.Backend.IdentityMode {
	case IdentityGoTrue:
		gotrue, err := c.gotrueClient()
		if err != nil {
			return clients, err
		}
		clients.Identity = gotrue
		roles = gotrue
		if c.AdminEnabled() {
			clients.Accounts = gotrue
		}
	case IdentityJWT:
		verifier, err := identity.NewJWTVerifier(c.Backend.JWTSecret, c.Backend.JWTAudience)
		if err != nil {
			return clients, err
		}
		clients.Identity = verifier
		if c.Backend.URL != "" && c.AdminEnabled() {
			gotrue, err := c.gotrueClient()
			if err != nil {
				return clients, err
			}
			clients.Accounts = gotrue
		}
	case IdentityStatic:
		static := identity.NewStaticProvider()
		tokens, _ := parseStaticTokens(c.Backend.StaticTokens)
		for _, t := range tokens {
			static.AddToken(t.token, t.id, t.email)
		}
		clients.Identity = static
		clients.Accounts = static
	}

	if c.Backend.RoleCacheSize > 0 && c.Backend.RoleCacheTTL > 0 {
		cached, err := identity.NewCachedRoles(roles, c.Backend.RoleCacheSize, c.Backend.RoleCacheTTL)
		if err != nil {
			return clients, fmt.Errorf("failed to build role cache: %w", err)
		}
		roles = cached
	}
	clients.Roles = roles

	return clients, nil
}

// BuildService creates a Service from the configuration. Extra options are
// applied last, so callers can attach an event sink or logger.
func (c *ServerConfig) BuildService(ctx context.Context, extra ...soundarchive.Option) (soundarchive.Service, soundarchive.BackendClients, error) {
	clients, err := c.BuildClients(ctx)
	if err != nil {
		return nil, clients, err
	}
	if !clients.Privileged {
		slog.Warn("BACKEND_SERVICE_KEY not set, admin features disabled")
	}

	options := []soundarchive.Option{
		soundarchive.WithBackendClients(clients),
		soundarchive.WithLimits(c.UploadLimits()),
		soundarchive.WithURLPolicy(c.URLPolicy()),
		soundarchive.WithWriteTimeout(c.Limits.WriteTimeout),
	}
	options = append(options, extra...)

	svc, err := soundarchive.New(options...)
	if err != nil {
		return nil, clients, err
	}
	return svc, clients, nil
}

func (c *ServerConfig) gotrueClient() (*identity.GoTrueClient, error) {
	return identity.NewGoTrueClient(identity.GoTrueConfig{
		BaseURL:    c.Backend.URL,
		AnonKey:    c.Backend.AnonKey,
		ServiceKey: c.Backend.ServiceKey,
		Timeout:    c.Backend.Timeout,
	})
}

// Repository is what both record store implementations provide.
type Repository interface {
	soundarchive.Repository
	soundarchive.UserStore
	soundarchive.RoleChecker
}

// BuildRepository creates the record store based on the configuration
func (c *ServerConfig) BuildRepository(ctx context.Context) (Repository, error) {
	if !c.UsesPostgres() {
		return memory.New(), nil
	}
	pool, err := NewPool(ctx, c.Database.URL, c.Database.Schema)
	if err != nil {
		return nil, err
	}
	return repopg.NewWithPool(pool), nil
}

// NewPool opens a pgx pool and sets search_path on every connection.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// BuildStore creates the object store based on the configuration
func (c *ServerConfig) BuildStore(ctx context.Context) (soundarchive.ObjectStore, error) {
	switch c.Storage.Type {
	case "memory":
		opts := []memorystorage.Option{memorystorage.WithSigner(c.Signer())}
		if c.Storage.PublicBaseURL != "" {
			opts = append(opts, memorystorage.WithPublicBaseURL(c.Storage.PublicBaseURL))
		}
		return memorystorage.New(opts...), nil

	case "fs":
		store, err := fsstorage.New(fsstorage.Config{
			BaseDir:       c.Storage.BaseDir,
			Bucket:        c.Storage.Bucket,
			PublicBaseURL: c.Storage.PublicBaseURL,
		}, c.Signer())
		if err != nil {
			return nil, err
		}
		return store, nil

	case "s3":
		store, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.Storage.S3Region,
			Bucket:                 c.Storage.Bucket,
			AccessKeyID:            c.Storage.S3AccessKeyID,
			SecretAccessKey:        c.Storage.S3SecretAccessKey,
			Endpoint:               c.Storage.S3Endpoint,
			UsePathStyle:           c.Storage.S3UsePathStyle,
			PublicBaseURL:          c.Storage.PublicBaseURL,
			EnableSSE:              c.Storage.S3EnableSSE,
			SSEAlgorithm:           c.Storage.S3SSEAlgorithm,
			SSEKMSKeyID:            c.Storage.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.Storage.S3CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

type staticToken struct {
	token, id, email string
}

func parseStaticTokens(raw string) ([]staticToken, error) {
	var out []staticToken
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid STATIC_TOKENS entry %q (want token:id[:email])", entry)
		}
		t := staticToken{token: parts[0], id: parts[1]}
		if len(parts) == 3 {
			t.email = parts[2]
		}
		out = append(out, t)
	}
	return out, nil
}
