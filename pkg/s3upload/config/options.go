package config

import "time"

// WithCredentials sets explicit keys. The session token may be empty.
func WithCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(c *Config) error {
		if accessKeyID == "" || secretAccessKey == "" {
			return ErrPartialCredentials
		}
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
		c.SessionToken = sessionToken
		return nil
	}
}

// WithBucket sets the target bucket
func WithBucket(bucket string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return ErrBucketRequired
		}
		c.Bucket = bucket
		return nil
	}
}

// WithEndpoint sets the storage host, e.g. "localhost:9000"
func WithEndpoint(endpoint string) Option {
	return func(c *Config) error {
		if endpoint == "" {
			return ErrEndpointRequired
		}
		c.Endpoint = endpoint
		return nil
	}
}

// WithRegion sets the region handed to the default credential chain
func WithRegion(region string) Option {
	return func(c *Config) error {
		if region == "" {
			return ErrRegionRequired
		}
		c.Region = region
		return nil
	}
}

// WithSecure selects https (true) or http (false)
func WithSecure(secure bool) Option {
	return func(c *Config) error {
		c.UseSSL = secure
		return nil
	}
}

// WithPathStyle selects {endpoint}/{bucket}/{key} addressing instead of {bucket}.{endpoint}
func WithPathStyle(pathStyle bool) Option {
	return func(c *Config) error {
		c.PathStyle = pathStyle
		return nil
	}
}

// WithTimeout bounds each request; zero disables the bound
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return ErrNegativeTimeout
		}
		c.Timeout = timeout
		return nil
	}
}
