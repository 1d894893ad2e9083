package s3upload

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// AuthScheme is the scheme name that prefixes the Authorization header.
const AuthScheme = "AWS"

// ErrInvalidSignature is returned by Verify when an Authorization header does not match.
var ErrInvalidSignature = errors.New("s3upload: invalid signature")

// Credentials identify the caller. They are never logged; String and LogValue redact
// the secret.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Validate reports ErrMissingCredentials when either key is empty.
func (c Credentials) Validate() error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKeyID: %s, SecretAccessKey: [redacted]}", c.AccessKeyID)
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_key_id", c.AccessKeyID),
		slog.Bool("session", c.SessionToken != ""),
	)
}

// Signer produces "AWS <access key id>:<signature>" authorization tokens, where the
// signature is base64(HMAC-SHA1(secret, string to sign)).
type Signer struct {
	accessKeyID string
	secretKey   []byte
}

// NewSigner returns a Signer for creds.
func NewSigner(creds Credentials) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Signer{
		accessKeyID: creds.AccessKeyID,
		secretKey:   []byte(creds.SecretAccessKey),
	}, nil
}

// Sign returns the Authorization header value for the canonical string.
func (s *Signer) Sign(stringToSign string) (string, error) {
	sig, err := s.signature(stringToSign)
	if err != nil {
		return "", err
	}
	return AuthScheme + " " + s.accessKeyID + ":" + sig, nil
}

// Verify checks an Authorization header value against the canonical string using a
// constant-time comparison.
func (s *Signer) Verify(stringToSign, authorization string) error {
	expected, err := s.Sign(stringToSign)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(authorization), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Signer) signature(stringToSign string) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrMissingCredentials
	}
	mac := hmac.New(sha1.New, s.secretKey)
	if _, err := mac.Write([]byte(stringToSign)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Sign is a one-shot form of (*Signer).Sign.
func Sign(stringToSign string, creds Credentials) (string, error) {
	s, err := NewSigner(creds)
	if err != nil {
		return "", err
	}
	return s.Sign(stringToSign)
}

// ParseAuthorization splits an "AWS id:signature" header value.
func ParseAuthorization(authorization string) (accessKeyID, signature string, ok bool) {
	rest, found := strings.CutPrefix(authorization, AuthScheme+" ")
	if !found {
		return "", "", false
	}
	accessKeyID, signature, found = strings.Cut(rest, ":")
	if !found || accessKeyID == "" || signature == "" {
		return "", "", false
	}
	return accessKeyID, signature, true
}
