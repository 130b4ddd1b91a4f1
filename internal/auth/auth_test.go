package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaude/agentcore/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), "auth.json")}
}

func TestResolveAPIKey_PrefersEnvOverFile(t *testing.T) {
	store := newTestStore(t)
	testutil.RequireNoError(t, store.SetAPIKey("openai", "file-key"), "set file key")
	t.Setenv("OPENAI_API_KEY", "env-key")

	key, source, err := store.ResolveAPIKey("openai")
	testutil.RequireNoError(t, err, "resolve key")
	testutil.RequireEqual(t, key, "env-key", "env key wins")
	testutil.RequireEqual(t, source, "env:OPENAI_API_KEY", "source reported")
}

func TestResolveAPIKey_FallsBackToFile(t *testing.T) {
	store := newTestStore(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	testutil.RequireNoError(t, store.SetAPIKey("anthropic", "file-key"), "set file key")

	key, source, err := store.ResolveAPIKey("anthropic")
	testutil.RequireNoError(t, err, "resolve key")
	testutil.RequireEqual(t, key, "file-key", "file key used")
	testutil.RequireEqual(t, source, "file", "source reported")
}

func TestResolveAPIKey_MissingCredentialErrors(t *testing.T) {
	store := newTestStore(t)
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	_, _, err := store.ResolveAPIKey("google")
	testutil.RequireTrue(t, err != nil, "expected missing-credential error")
}

func TestAccessToken_SkipsRefreshWhenNotExpired(t *testing.T) {
	store := newTestStore(t)
	testutil.RequireNoError(t, store.SetOAuthCredential("anthropic", Credential{
		AccessToken:  "still-good",
		RefreshToken: "refresh-1",
		ExpiresAtMS:  time.Now().Add(time.Hour).UnixMilli(),
	}), "seed credential")

	called := false
	refresh := func(ctx context.Context, refreshToken string) (string, int64, string, error) {
		called = true
		return "new-token", 0, "", nil
	}

	token, err := store.AccessToken(context.Background(), "anthropic", refresh)
	testutil.RequireNoError(t, err, "access token")
	testutil.RequireEqual(t, token, "still-good", "unexpired token kept")
	testutil.RequireTrue(t, !called, "refresh must not be called for a valid token")
}

func TestAccessToken_RefreshesExpiredToken(t *testing.T) {
	store := newTestStore(t)
	testutil.RequireNoError(t, store.SetOAuthCredential("anthropic", Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAtMS:  time.Now().Add(-time.Minute).UnixMilli(),
	}), "seed credential")

	refresh := func(ctx context.Context, refreshToken string) (string, int64, string, error) {
		testutil.RequireEqual(t, refreshToken, "refresh-1", "refresh token forwarded")
		return "fresh-token", time.Now().Add(time.Hour).UnixMilli(), "refresh-2", nil
	}

	token, err := store.AccessToken(context.Background(), "anthropic", refresh)
	testutil.RequireNoError(t, err, "access token")
	testutil.RequireEqual(t, token, "fresh-token", "refreshed token returned")

	// A second call must reuse the persisted refresh token state rather than
	// refreshing again.
	token2, err := store.AccessToken(context.Background(), "anthropic", func(ctx context.Context, refreshToken string) (string, int64, string, error) {
		t.Fatal("refresh should not be called again for a fresh token")
		return "", 0, "", nil
	})
	testutil.RequireNoError(t, err, "access token again")
	testutil.RequireEqual(t, token2, "fresh-token", "cached fresh token reused")
}
