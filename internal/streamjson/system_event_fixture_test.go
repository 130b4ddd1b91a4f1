package streamjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/openclaude/agentcore/internal/testutil"
)

// TestStreamJSONSystemEventFixtures verifies hook/auth/keep_alive JSONL ordering and payloads.
func TestStreamJSONSystemEventFixtures(testingHandle *testing.T) {
	var buffer bytes.Buffer
	writer := NewWriter(&buffer)
	events := []any{
		HookStartedEvent{
			Type:      "system",
			Subtype:   "hook_started",
			HookID:    "hook-1",
			HookName:  "preflight",
			HookEvent: "before_prompt",
			UUID:      "<uuid>",
			SessionID: "session-1",
		},
		HookProgressEvent{
			Type:      "system",
			Subtype:   "hook_progress",
			HookID:    "hook-1",
			HookName:  "preflight",
			HookEvent: "before_prompt",
			Stdout:    "running\n",
			Stderr:    "warn\n",
			Output:    "progress",
			UUID:      "<uuid>",
			SessionID: "session-1",
		},
		HookResponseEvent{
			Type:      "system",
			Subtype:   "hook_response",
			HookID:    "hook-1",
			HookName:  "preflight",
			HookEvent: "before_prompt",
			Output:    "done",
			Stdout:    "ok\n",
			Stderr:    "warn\n",
			ExitCode:  1,
			Outcome:   "failed",
			UUID:      "<uuid>",
			SessionID: "session-1",
		},
		AuthStatusEvent{
			Type:             "auth_status",
			IsAuthenticating: true,
			Output:           "Waiting for login",
			Error:            "Missing token",
			UUID:             "<uuid>",
			SessionID:        "session-1",
		},
		KeepAliveEvent{
			Type: "keep_alive",
		},
	}

	for _, e := range events {
		testutil.RequireNoError(testingHandle, writer.Write(e), "write stream-json event")
	}

	gotLines := readJSONLLinesRaw(testingHandle, buffer.Bytes())
	testutil.RequireTrue(testingHandle, len(gotLines) == len(events), "expected one JSON line per event")

	for i, line := range gotLines {
		var decoded map[string]any
		testutil.RequireNoError(testingHandle, json.Unmarshal([]byte(line), &decoded), "parse emitted line")
		_ = i
	}
	testutil.RequireStringContains(testingHandle, gotLines[0], `"hook_started"`, "hook start subtype present")
	testutil.RequireStringContains(testingHandle, gotLines[1], `"warn\n"`, "hook progress stderr present")
	testutil.RequireStringContains(testingHandle, gotLines[2], `"failed"`, "hook response outcome present")
	testutil.RequireStringContains(testingHandle, gotLines[3], `"Missing token"`, "auth status error present")
	testutil.RequireStringContains(testingHandle, gotLines[4], `"keep_alive"`, "keep alive type present")
}

// readJSONLLinesRaw splits a JSONL payload into trimmed, non-empty lines.
func readJSONLLinesRaw(testingHandle *testing.T, payload []byte) []string {
	testingHandle.Helper()

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	testutil.RequireNoError(testingHandle, scanner.Err(), "scan output lines")
	return lines
}
