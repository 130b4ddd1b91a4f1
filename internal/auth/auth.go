// Package auth resolves and persists per-provider credentials: a plain
// API key sourced from the environment or an auth file, or an OAuth
// token pair whose refresh is serialized per provider so two concurrent
// calls never race two refreshes against the same refresh token (spec.md
// §5 "shared resources").
//
// Grounded on _examples/dm-vev-OpenClaude/internal/config/provider.go's
// JSON-file-under-~/.openclaude convention, generalised from one
// OpenAI-compatible gateway key to the full multi-provider credential set.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CredentialKind distinguishes a plain API key from an OAuth token pair.
type CredentialKind string

const (
	KindAPIKey CredentialKind = "api_key"
	KindOAuth  CredentialKind = "oauth"
)

// Credential is one provider's stored credential.
type Credential struct {
	Kind         CredentialKind `json:"kind"`
	APIKey       string         `json:"api_key,omitempty"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAtMS  int64          `json:"expires_at_ms,omitempty"`
}

// Expired reports whether an OAuth access token has passed its expiry,
// with a small safety margin so a refresh starts before the token is
// actually rejected by the provider.
func (c Credential) Expired(now time.Time) bool {
	if c.Kind != KindOAuth || c.ExpiresAtMS == 0 {
		return false
	}
	return now.Add(30 * time.Second).UnixMilli() >= c.ExpiresAtMS
}

// envVars lists the environment variable names checked for a provider's
// API key, in priority order, before falling back to the auth file.
var envVars = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"google":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"bedrock":   {"AWS_BEARER_TOKEN_BEDROCK"},
}

// Store persists credentials under ~/.openclaude/auth.json, keyed by
// provider name.
type Store struct {
	// Path is the auth file location.
	Path string

	mu          sync.Mutex
	creds       map[string]Credential
	loaded      bool
	refreshLock sync.Map // provider -> *sync.Mutex, serializes RefreshOAuth per provider
}

// NewStore constructs a Store rooted at the default ~/.openclaude location.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	return &Store{Path: filepath.Join(home, ".openclaude", "auth.json")}, nil
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.creds = map[string]Credential{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read auth file: %w", err)
	}
	var creds map[string]Credential
	if err := json.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("parse auth file: %w", err)
	}
	s.creds = creds
	s.loaded = true
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create auth dir: %w", err)
	}
	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal auth file: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o600)
}

// ResolveAPIKey returns provider's API key, preferring the environment over
// the auth file (spec.md §6 "api key source"); source reports which one.
func (s *Store) ResolveAPIKey(provider string) (key string, source string, err error) {
	for _, name := range envVars[provider] {
		if v := os.Getenv(name); v != "" {
			return v, "env:" + name, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return "", "", err
	}
	cred, ok := s.creds[provider]
	if !ok || cred.Kind != KindAPIKey || cred.APIKey == "" {
		return "", "", fmt.Errorf("auth: no credential stored for provider %q", provider)
	}
	return cred.APIKey, "file", nil
}

// SetAPIKey persists an explicit API key for provider.
func (s *Store) SetAPIKey(provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if s.creds == nil {
		s.creds = map[string]Credential{}
	}
	s.creds[provider] = Credential{Kind: KindAPIKey, APIKey: key}
	return s.save()
}

// RefreshFunc exchanges a refresh token for a new access token/expiry.
type RefreshFunc func(ctx context.Context, refreshToken string) (accessToken string, expiresAtMS int64, newRefreshToken string, err error)

// providerLock returns the mutex serializing OAuth refreshes for provider,
// creating it on first use.
func (s *Store) providerLock(provider string) *sync.Mutex {
	lock, _ := s.refreshLock.LoadOrStore(provider, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// AccessToken returns a valid OAuth access token for provider, calling
// refresh at most once even if multiple goroutines race this call for the
// same provider (spec.md §5 "per-provider serialized OAuth refresh"): the
// first caller through the lock refreshes and persists the new token, and
// every caller behind it re-reads the now-fresh credential instead of
// refreshing again.
func (s *Store) AccessToken(ctx context.Context, provider string, refresh RefreshFunc) (string, error) {
	lock := s.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if err := s.ensureLoaded(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	cred, ok := s.creds[provider]
	s.mu.Unlock()
	if !ok || cred.Kind != KindOAuth {
		return "", errors.New("auth: no OAuth credential stored for provider " + provider)
	}
	if !cred.Expired(time.Now()) {
		return cred.AccessToken, nil
	}

	accessToken, expiresAtMS, newRefreshToken, err := refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("auth: refresh %s token: %w", provider, err)
	}
	if newRefreshToken == "" {
		newRefreshToken = cred.RefreshToken
	}

	s.mu.Lock()
	s.creds[provider] = Credential{
		Kind:         KindOAuth,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresAtMS:  expiresAtMS,
	}
	saveErr := s.save()
	s.mu.Unlock()
	if saveErr != nil {
		return "", fmt.Errorf("auth: persist refreshed token: %w", saveErr)
	}
	return accessToken, nil
}

// SetOAuthCredential stores an initial OAuth token pair for provider.
func (s *Store) SetOAuthCredential(provider string, cred Credential) error {
	cred.Kind = KindOAuth
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if s.creds == nil {
		s.creds = map[string]Credential{}
	}
	s.creds[provider] = cred
	return s.save()
}
