package log

import (
	"testing"

	"github.com/openclaude/agentcore/internal/testutil"
)

func TestGet_ReturnsSameLoggerInstance(t *testing.T) {
	first := Get()
	second := Get()
	testutil.RequireTrue(t, first == second, "Get should return the process-wide singleton")
}

func TestForSession_AttachesSessionField(t *testing.T) {
	logger := ForSession("sess-123")
	testutil.RequireTrue(t, logger != nil, "expected a non-nil scoped logger")
}
