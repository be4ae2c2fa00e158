package config

import (
	"errors"
	"time"
)

// WithPort overrides the listen port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithDatabase points the content table at Postgres. An empty URL or
// "memory" keeps everything in process.
func WithDatabase(url, schema string) Option {
	return func(c *ServerConfig) error {
		c.Database.URL = url
		if schema != "" {
			c.Database.Schema = schema
		}
		return nil
	}
}

// WithMemoryStorage keeps objects in process. A non-empty publicBaseURL marks the store public.
func WithMemoryStorage(publicBaseURL string) Option {
	return func(c *ServerConfig) error {
		c.Storage.Type = "memory"
		c.Storage.PublicBaseURL = publicBaseURL
		return nil
	}
}

// WithFilesystemStorage stores objects under baseDir/bucket
func WithFilesystemStorage(baseDir, bucket string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return errors.New("filesystem base directory cannot be empty")
		}
		c.Storage.Type = "fs"
		c.Storage.BaseDir = baseDir
		if bucket != "" {
			c.Storage.Bucket = bucket
		}
		return nil
	}
}

// WithS3Storage selects an S3 bucket
func WithS3Storage(bucket, region, endpoint string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return errors.New("s3 bucket cannot be empty")
		}
		c.Storage.Type = "s3"
		c.Storage.Bucket = bucket
		if region != "" {
			c.Storage.S3Region = region
		}
		c.Storage.S3Endpoint = endpoint
		return nil
	}
}

// WithSigningKey sets the HMAC key for presigned downloads
func WithSigningKey(key string) Option {
	return func(c *ServerConfig) error {
		c.Storage.SigningKey = key
		return nil
	}
}

// WithStaticIdentity uses fixed bearer tokens, for development and tests.
// serviceKey enables admin features.
func WithStaticIdentity(tokens, serviceKey string) Option {
	return func(c *ServerConfig) error {
		c.Backend.IdentityMode = IdentityStatic
		c.Backend.StaticTokens = tokens
		c.Backend.ServiceKey = serviceKey
		return nil
	}
}

// WithGoTrue verifies tokens and resolves roles against a GoTrue-compatible backend.
func WithGoTrue(url, anonKey, serviceKey string) Option {
	return func(c *ServerConfig) error {
		c.Backend.IdentityMode = IdentityGoTrue
		c.Backend.URL = url
		c.Backend.AnonKey = anonKey
		c.Backend.ServiceKey = serviceKey
		return nil
	}
}

// WithJWT verifies HS256 tokens locally and resolves roles from the users table.
func WithJWT(secret, audience string) Option {
	return func(c *ServerConfig) error {
		c.Backend.IdentityMode = IdentityJWT
		c.Backend.JWTSecret = secret
		c.Backend.JWTAudience = audience
		return nil
	}
}

// WithRoleCache sizes the role cache. A zero size disables it.
func WithRoleCache(size int, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.Backend.RoleCacheSize = size
		c.Backend.RoleCacheTTL = ttl
		return nil
	}
}
