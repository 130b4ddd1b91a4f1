package anthropic

import "testing"

func TestToClaudeCodeName_CanonicalCasing(t *testing.T) {
	if got := toClaudeCodeName("bash"); got != "Bash" {
		t.Errorf("got %q", got)
	}
	if got := toClaudeCodeName("unknown_tool"); got != "unknown_tool" {
		t.Errorf("unknown tool should pass through unchanged, got %q", got)
	}
}

func TestIsOAuthToken(t *testing.T) {
	if !isOAuthToken("sk-ant-oat01-abc") {
		t.Error("expected oauth token detected")
	}
	if isOAuthToken("sk-ant-api03-abc") {
		t.Error("regular api key must not be treated as oauth")
	}
}

func TestCacheControl_NoneDisablesCaching(t *testing.T) {
	if cacheControl("https://api.anthropic.com", "none") != nil {
		t.Error("expected nil cache control for retention=none")
	}
}

func TestCacheControl_LongOnlyOnCanonicalHost(t *testing.T) {
	cc := cacheControl("https://api.anthropic.com", "long")
	if cc == nil || cc.TTL == "" {
		t.Fatalf("expected 1h ttl on canonical host, got %#v", cc)
	}
	cc2 := cacheControl("https://proxy.example.com", "long")
	if cc2 == nil || cc2.TTL != "" {
		t.Errorf("expected no ttl on non-canonical host, got %#v", cc2)
	}
}

func TestSupportsAdaptiveThinking(t *testing.T) {
	if !supportsAdaptiveThinking("claude-opus-4-6-20260101") {
		t.Error("expected opus-4-6 to support adaptive thinking")
	}
	if supportsAdaptiveThinking("claude-sonnet-4-5-20250929") {
		t.Error("sonnet-4-5 should not support adaptive thinking")
	}
}
