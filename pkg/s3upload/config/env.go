package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors Config as raw strings so unset variables leave earlier options alone.
type envConfig struct {
	AccessKeyID     string `env:"S3UPLOAD_ACCESS_KEY_ID,AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3UPLOAD_SECRET_ACCESS_KEY,AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"S3UPLOAD_SESSION_TOKEN,AWS_SESSION_TOKEN"`
	Bucket          string `env:"S3UPLOAD_BUCKET"`
	Endpoint        string `env:"S3UPLOAD_ENDPOINT"`
	Region          string `env:"S3UPLOAD_REGION"`
	UseSSL          string `env:"S3UPLOAD_USE_SSL"`
	PathStyle       string `env:"S3UPLOAD_PATH_STYLE"`
	Timeout         string `env:"S3UPLOAD_TIMEOUT"`
}

// WithEnv applies environment variable overrides.
//
//	S3UPLOAD_ACCESS_KEY_ID      - access key id (falls back to AWS_ACCESS_KEY_ID)
//	S3UPLOAD_SECRET_ACCESS_KEY  - secret key (falls back to AWS_SECRET_ACCESS_KEY)
//	S3UPLOAD_SESSION_TOKEN      - session token (falls back to AWS_SESSION_TOKEN)
//	S3UPLOAD_BUCKET             - target bucket
//	S3UPLOAD_ENDPOINT           - storage host (default: s3.amazonaws.com)
//	S3UPLOAD_REGION             - region for the default credential chain (default: us-east-1)
//	S3UPLOAD_USE_SSL            - https when true (default: true)
//	S3UPLOAD_PATH_STYLE         - path-style addressing when true (default: false)
//	S3UPLOAD_TIMEOUT            - request timeout, e.g. "30s" (default: none)
//
// Unset or empty variables keep whatever value earlier options produced.
func WithEnv() Option {
	return func(c *Config) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if env.AccessKeyID != "" {
			c.AccessKeyID = env.AccessKeyID
		}
		if env.SecretAccessKey != "" {
			c.SecretAccessKey = env.SecretAccessKey
		}
		if env.SessionToken != "" {
			c.SessionToken = env.SessionToken
		}
		if env.Bucket != "" {
			c.Bucket = env.Bucket
		}
		if env.Endpoint != "" {
			c.Endpoint = env.Endpoint
		}
		if env.Region != "" {
			c.Region = env.Region
		}

		if v, ok, err := parseBool("S3UPLOAD_USE_SSL", env.UseSSL); err != nil {
			return err
		} else if ok {
			c.UseSSL = v
		}
		if v, ok, err := parseBool("S3UPLOAD_PATH_STYLE", env.PathStyle); err != nil {
			return err
		} else if ok {
			c.PathStyle = v
		}

		if env.Timeout != "" {
			d, err := time.ParseDuration(env.Timeout)
			if err != nil {
				return fmt.Errorf("invalid duration for S3UPLOAD_TIMEOUT: %w", err)
			}
			c.Timeout = d
		}
		return nil
	}
}

func parseBool(key, raw string) (bool, bool, error) {
	if raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return parsed, true, nil
}
