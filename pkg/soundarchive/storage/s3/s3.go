package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // Bucket name
	AccessKeyID     string // Access key ID
	SecretAccessKey string // Secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing

	// PublicBaseURL marks the bucket as publicly readable; public URLs are
	// PublicBaseURL + "/" + key.
	PublicBaseURL string

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// CreateBucketIfNotExist creates the bucket on startup.
	CreateBucketIfNotExist bool
}

// Backend is an S3-compatible implementation of soundarchive.ObjectStore
type Backend struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicBase    string
	config        Config
}

// New creates a new S3-compatible storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)
	backend := &Backend{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        config.Bucket,
		publicBase:    strings.TrimRight(config.PublicBaseURL, "/"),
		config:        config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (b *Backend) EnsureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) && !strings.Contains(err.Error(), "BadRequest") {
		return &soundarchive.StorageError{Op: "ensure_bucket", Err: fmt.Errorf("failed to check bucket: %w", err)}
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	if b.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return &soundarchive.StorageError{Op: "ensure_bucket", Err: fmt.Errorf("failed to create bucket: %w", err)}
	}
	return nil
}

// Ping checks the bucket is reachable
func (b *Backend) Ping(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		if isNotFound(err) {
			return &soundarchive.StorageError{Op: "ping", Err: fmt.Errorf("bucket %s: %w", b.bucket, soundarchive.ErrNotFound)}
		}
		return &soundarchive.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Put uploads the object with the multipart upload manager
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if b.config.EnableSSE {
		switch b.config.SSEAlgorithm {
		case "AES256":
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			if b.config.SSEKMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
			}
		}
	}

	if _, err := manager.NewUploader(b.client).Upload(ctx, input); err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: err}
	}
	return nil
}

// Delete removes the object; S3 treats missing keys as success
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &soundarchive.StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}

// SignedURL checks the object exists and returns a presigned GET URL
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: soundarchive.ErrNotFound}
		}
		return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: err}
	}

	result, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String("inline"),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: fmt.Errorf("failed to generate presigned URL: %w", err)}
	}
	return result.URL, nil
}

// PublicURL returns the public URL when the bucket is configured as public
func (b *Backend) PublicURL(key string) (string, bool) {
	if b.publicBase == "" {
		return "", false
	}
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return b.publicBase + "/" + strings.Join(segments, "/"), true
}

// List pages through ListObjectsV2 under prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]soundarchive.ObjectInfo, error) {
	var out []soundarchive.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &soundarchive.StorageError{Key: prefix, Op: "list", Err: err}
		}
		for _, obj := range page.Contents {
			info := soundarchive.ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
