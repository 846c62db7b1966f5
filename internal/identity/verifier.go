package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidCredential indicates the bearer credential could not be verified.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// ClaimVerifier turns an opaque bearer credential into a verified subject.
type ClaimVerifier interface {
	Verify(ctx context.Context, credential string) (Subject, error)
}

// TokenStore verifies bearer tokens against Redis. Tokens are opaque ids
// pointing at a JSON payload written by the identity provider; a missing
// or expired key means the credential is invalid.
type TokenStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

type tokenPayload struct {
	SubjectID string            `json:"subject_id"`
	Claims    map[string]string `json:"claims,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, prefix string, timeout time.Duration) *TokenStore {
	if prefix == "" {
		prefix = "token"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &TokenStore{client: client, prefix: prefix, timeout: timeout}
}

// Verify resolves the credential to a subject. Lookup failures of any kind,
// including timeouts, are reported as ErrInvalidCredential so the caller
// always fails closed.
func (s *TokenStore) Verify(ctx context.Context, credential string) (Subject, error) {
	if credential == "" {
		return Subject{}, ErrInvalidCredential
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(credential)).Bytes()
	if err != nil {
		return Subject{}, ErrInvalidCredential
	}

	var payload tokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Subject{}, ErrInvalidCredential
	}
	if payload.SubjectID == "" || time.Now().After(payload.ExpiresAt) {
		return Subject{}, ErrInvalidCredential
	}

	return Subject{
		SubjectID: payload.SubjectID,
		Claims:    payload.Claims,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

// Issue writes a new token for the subject and returns the opaque credential.
func (s *TokenStore) Issue(ctx context.Context, subjectID string, claims map[string]string, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", errors.New("identity: subject id required")
	}
	credential := generateTokenID()
	payload := tokenPayload{
		SubjectID: subjectID,
		Claims:    claims,
		ExpiresAt: time.Now().Add(ttl),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key(credential), data, ttl).Err(); err != nil {
		return "", err
	}
	return credential, nil
}

// Revoke deletes the token so the credential stops verifying immediately.
func (s *TokenStore) Revoke(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(credential)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *TokenStore) key(credential string) string {
	return s.prefix + ":" + credential
}

func generateTokenID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("identity: entropy source unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
