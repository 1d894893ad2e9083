package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/tendant/simple-upload/pkg/s3upload"
)

var (
	ErrBucketRequired     = errors.New("bucket is required")
	ErrEndpointRequired   = errors.New("endpoint is required")
	ErrRegionRequired     = errors.New("region is required")
	ErrPartialCredentials = errors.New("access key id and secret access key must be set together")
	ErrNegativeTimeout    = errors.New("timeout must not be negative")
	ErrNoCredentials      = errors.New("no credentials found in the default chain")
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
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

func defaults() Config {
	return Config{
		Endpoint: s3upload.DefaultEndpoint,
		Region:   "us-east-1",
		UseSSL:   true,
	}
}

// Config describes how to reach a bucket and which identity to sign with
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	Bucket    string
	Endpoint  string // host[:port], no scheme
	Region    string // only consulted by the default credential chain
	UseSSL    bool
	PathStyle bool

	// Timeout bounds a whole request. Zero means no client-side timeout.
	Timeout time.Duration
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	if c.Endpoint == "" {
		return ErrEndpointRequired
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return ErrPartialCredentials
	}
	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}
	return nil
}

// ResolveCredentials returns the signing identity. Explicit keys win; otherwise the
// AWS default chain (environment, shared files, instance metadata) is asked once.
func (c *Config) ResolveCredentials(ctx context.Context) (s3upload.Credentials, error) {
	var provider aws.CredentialsProvider

	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		provider = credentials.NewStaticCredentialsProvider(
			c.AccessKeyID,
			c.SecretAccessKey,
			c.SessionToken,
		)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(c.Region),
		)
		if err != nil {
			return s3upload.Credentials{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if awsCfg.Credentials == nil {
			return s3upload.Credentials{}, ErrNoCredentials
		}
		provider = awsCfg.Credentials
	}

	value, err := provider.Retrieve(ctx)
	if err != nil {
		return s3upload.Credentials{}, fmt.Errorf("failed to retrieve credentials: %w", err)
	}

	return s3upload.Credentials{
		AccessKeyID:     value.AccessKeyID,
		SecretAccessKey: value.SecretAccessKey,
		SessionToken:    value.SessionToken,
	}, nil
}

// UploadOptions returns the per-upload defaults implied by the configuration
func (c *Config) UploadOptions() s3upload.UploadOptions {
	return s3upload.UploadOptions{UseSecureTransport: c.UseSSL}
}

// ClientOptions translates the configuration into client options. Extra options are
// applied last and may override them.
func (c *Config) ClientOptions(extra ...s3upload.Option) []s3upload.Option {
	opts := []s3upload.Option{s3upload.WithEndpoint(c.Endpoint)}
	if c.PathStyle {
		opts = append(opts, s3upload.WithPathStyle())
	}
	if c.Timeout > 0 {
		opts = append(opts, s3upload.WithHTTPClient(&http.Client{Timeout: c.Timeout}))
	}
	return append(opts, extra...)
}

// NewClient resolves credentials and builds a client for the configured bucket
func (c *Config) NewClient(ctx context.Context, opts ...s3upload.Option) (*s3upload.Client, error) {
	creds, err := c.ResolveCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return s3upload.New(creds, c.Bucket, c.ClientOptions(opts...)...)
}
