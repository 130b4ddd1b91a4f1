// Package session implements the append-only session log described in
// spec.md §4.8: every session is a JSONL file of typed entries (message,
// tool_result, model_change, thinking_level_change, label, session_info,
// compaction), appended atomically and replayed to reconstruct live
// context honoring the latest compaction cut point.
//
// Grounded on _examples/dm-vev-OpenClaude/internal/session/store.go's
// flat JSONL-under-~/.openclaude layout, generalised from a single
// "event any" blob per line into the typed Entry union spec.md requires.
package session

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/openclaude/agentcore/internal/event"
)

// EntryKind tags the closed set of session-log entry variants (spec.md
// §4.8 "Entry kinds").
type EntryKind string

const (
	EntryMessage             EntryKind = "message"
	EntryToolResult          EntryKind = "tool_result"
	EntryModelChange         EntryKind = "model_change"
	EntryThinkingLevelChange EntryKind = "thinking_level_change"
	EntryLabel               EntryKind = "label"
	EntrySessionInfo         EntryKind = "session_info"
	EntryCompaction          EntryKind = "compaction"
)

// schemaVersion is bumped whenever Entry's on-disk shape changes in a way
// that requires load-time migration.
const schemaVersion = 1

// SessionInfo is the payload of the session_info entry every session log
// starts with (the "header record").
type SessionInfo struct {
	SchemaVersion   int    `json:"schema_version"`
	CWD             string `json:"cwd,omitempty"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	ForkPointID     string `json:"fork_point_id,omitempty"`
	CreatedAt       int64  `json:"created_at"`
}

// Entry is one line of a session's JSONL log. Exactly the fields relevant
// to Kind are populated; Entry is a closed sum type enforced by Kind, not
// by Go's type system, matching the rest of this module's tagged-union
// convention.
type Entry struct {
	Kind      EntryKind   `json:"kind"`
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Message   event.Message `json:"message,omitempty"`
	Model     string      `json:"model,omitempty"`
	Level     string      `json:"level,omitempty"`
	Label     string      `json:"label,omitempty"`
	Info      *SessionInfo `json:"info,omitempty"`

	// Compaction fields (EntryCompaction only).
	Summary    event.Message `json:"summary,omitempty"`
	CutEntryID string        `json:"cut_entry_id,omitempty"`
}

// Store manages session persistence under ~/.openclaude.
type Store struct {
	// BaseDir is the root for all persisted data.
	BaseDir string
}

// NewStore constructs a Store using the default base directory.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	return &Store{BaseDir: filepath.Join(home, ".openclaude")}, nil
}

// ProjectHash returns a stable hash for the current workspace path.
func ProjectHash(path string) string {
	clean := filepath.Clean(path)
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:8])
}

// SessionPath returns the JSONL path for a session.
func (s *Store) SessionPath(sessionID string) string {
	return filepath.Join(s.BaseDir, "sessions", sessionID+".jsonl")
}

// AppendEvent writes an arbitrary JSONL line for the session, kept for
// callers (task bookkeeping, plan-mode markers) that persist their own
// ad hoc payloads rather than typed Entry values.
func (s *Store) AppendEvent(sessionID string, payload any) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	return s.appendLine(s.SessionPath(sessionID), data)
}

// appendLine appends one line to path, holding an advisory flock for the
// duration of the write so concurrent appenders (tool execution fan-out,
// steering messages) never interleave partial JSON lines.
func (s *Store) appendLine(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock session file: %w", err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write session event: %w", err)
	}
	return nil
}

func (s *Store) appendEntry(sessionID string, e Entry) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal session entry: %w", err)
	}
	return s.appendLine(s.SessionPath(sessionID), data)
}

// EnsureHeader appends the session_info header record if the session log
// doesn't exist yet; a no-op on an already-initialized session.
func (s *Store) EnsureHeader(sessionID string, info SessionInfo) error {
	if _, err := os.Stat(s.SessionPath(sessionID)); err == nil {
		return nil
	}
	info.SchemaVersion = schemaVersion
	if info.CreatedAt == 0 {
		info.CreatedAt = time.Now().UnixMilli()
	}
	return s.appendEntry(sessionID, Entry{Kind: EntrySessionInfo, Info: &info})
}

// AppendMessage persists an assistant or user turn. Its signature matches
// agentloop.Store's persistence hook, so *Store satisfies that interface
// structurally; session never imports agentloop.
func (s *Store) AppendMessage(_ context.Context, sessionID string, msg event.Message) error {
	return s.appendEntry(sessionID, Entry{Kind: EntryMessage, Message: msg})
}

// AppendToolResult persists one completed tool call's result message.
func (s *Store) AppendToolResult(_ context.Context, sessionID string, msg event.Message) error {
	return s.appendEntry(sessionID, Entry{Kind: EntryToolResult, Message: msg})
}

// AppendModelChange records a mid-session model switch.
func (s *Store) AppendModelChange(sessionID, model string) error {
	return s.appendEntry(sessionID, Entry{Kind: EntryModelChange, Model: model})
}

// AppendThinkingLevelChange records a mid-session reasoning-effort switch.
func (s *Store) AppendThinkingLevelChange(sessionID, level string) error {
	return s.appendEntry(sessionID, Entry{Kind: EntryThinkingLevelChange, Level: level})
}

// AppendLabel attaches a human-readable label to the session.
func (s *Store) AppendLabel(sessionID, label string) error {
	return s.appendEntry(sessionID, Entry{Kind: EntryLabel, Label: label})
}

// AppendCompaction records a compactor run: summary is the synthetic
// summary message, cutEntryID is the id of the first entry kept verbatim
// after it (spec.md §4.9).
func (s *Store) AppendCompaction(sessionID string, summary event.Message, cutEntryID string) error {
	return s.appendEntry(sessionID, Entry{Kind: EntryCompaction, Summary: summary, CutEntryID: cutEntryID})
}

// LoadEntries reads and decodes every entry from a session's log in order.
// A line that fails to decode as an Entry is skipped rather than aborting
// the whole replay, so one corrupted line doesn't lose the rest of the
// session.
func (s *Store) LoadEntries(sessionID string) ([]Entry, error) {
	raw, err := s.LoadEvents(sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, line := range raw {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetMessages replays a session's entries into the live message list a
// provider call should see: messages and tool results in order, with
// everything before the latest compaction entry's cut point collapsed into
// that compaction's synthetic summary message (spec.md §4.9 "compaction
// entry replaces the prefix it summarizes").
func (s *Store) GetMessages(sessionID string) ([]event.Message, error) {
	entries, err := s.LoadEntries(sessionID)
	if err != nil {
		return nil, err
	}

	cutIndex := -1
	var summary event.Message
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == EntryCompaction {
			cutIndex = i
			summary = entries[i].Summary
			break
		}
	}

	var messages []event.Message
	if cutIndex >= 0 {
		messages = append(messages, summary)
	}
	start := 0
	if cutIndex >= 0 {
		start = cutIndex + 1
		// The cut entry and everything after it stay verbatim; the
		// compaction entry itself is skipped by the kind switch below.
		for i := 0; i < cutIndex; i++ {
			if entries[i].ID == entries[cutIndex].CutEntryID {
				start = i
				break
			}
		}
	}
	for _, e := range entries[start:] {
		switch e.Kind {
		case EntryMessage, EntryToolResult:
			messages = append(messages, e.Message)
		}
	}
	return messages, nil
}

// GetSessionInfo returns the header record for a session.
func (s *Store) GetSessionInfo(sessionID string) (SessionInfo, error) {
	entries, err := s.LoadEntries(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	for _, e := range entries {
		if e.Kind == EntrySessionInfo && e.Info != nil {
			return *e.Info, nil
		}
	}
	return SessionInfo{}, errors.New("session has no header record")
}

// ForkFrom creates a new session whose log is a copy of sessionID's entries
// up to and including entryID, with a session_info header recording the
// parent/fork-point link (spec.md §4.8 "fork_from"). Returns the new
// session's id.
func (s *Store) ForkFrom(sessionID, entryID string) (string, error) {
	entries, err := s.LoadEntries(sessionID)
	if err != nil {
		return "", err
	}

	cut := -1
	for i, e := range entries {
		if e.ID == entryID {
			cut = i
			break
		}
	}
	if cut < 0 {
		return "", fmt.Errorf("fork_from: entry %s not found in session %s", entryID, sessionID)
	}

	newID := uuid.NewString()
	if err := s.appendEntry(newID, Entry{
		Kind: EntrySessionInfo,
		Info: &SessionInfo{
			SchemaVersion:   schemaVersion,
			ParentSessionID: sessionID,
			ForkPointID:     entryID,
			CreatedAt:       time.Now().UnixMilli(),
		},
	}); err != nil {
		return "", err
	}
	for _, e := range entries[:cut+1] {
		if e.Kind == EntrySessionInfo {
			continue // the fork gets its own header, not the parent's
		}
		if err := s.appendEntry(newID, e); err != nil {
			return "", err
		}
	}
	return newID, nil
}

// GetBranch returns the chain of session ids from the root session down to
// sessionID, following ParentSessionID links (spec.md §4.8 "get_branch").
func (s *Store) GetBranch(sessionID string) ([]string, error) {
	chain := []string{sessionID}
	seen := map[string]bool{sessionID: true}
	current := sessionID
	for {
		info, err := s.GetSessionInfo(current)
		if err != nil || info.ParentSessionID == "" {
			break
		}
		if seen[info.ParentSessionID] {
			break // defensive: never loop on a corrupted parent cycle
		}
		seen[info.ParentSessionID] = true
		chain = append([]string{info.ParentSessionID}, chain...)
		current = info.ParentSessionID
	}
	return chain, nil
}

// GetTree returns, for every session under the store, its parent session id
// (empty for roots) — the flat edge list spec.md §4.8's "get_tree" renders
// into a fork tree.
func (s *Store) GetTree() (map[string]string, error) {
	ids, err := s.ListSessions(0)
	if err != nil {
		return nil, err
	}
	tree := make(map[string]string, len(ids))
	for _, id := range ids {
		info, err := s.GetSessionInfo(id)
		if err != nil {
			tree[id] = ""
			continue
		}
		tree[id] = info.ParentSessionID
	}
	return tree, nil
}

// DeleteSession removes a session's log. Project last_session pointers that
// name the session are left in place.
func (s *Store) DeleteSession(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	err := os.Remove(s.SessionPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// LoadEvents reads all JSONL events from a session file as raw JSON,
// preserved for callers still reading ad hoc AppendEvent payloads.
func (s *Store) LoadEvents(sessionID string) ([]json.RawMessage, error) {
	path := s.SessionPath(sessionID)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []json.RawMessage
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		events = append(events, json.RawMessage(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return events, nil
}

// StreamJSONPath returns the path where raw stream-json replay lines are
// stored for a session, kept separate from the typed Entry log since these
// lines are opaque bytes, not Entry values.
func (s *Store) StreamJSONPath(sessionID string) string {
	return filepath.Join(s.BaseDir, "sessions", sessionID+".stream.jsonl")
}

// AppendStreamJSONLine persists one raw stream-json output line verbatim, so
// --replay-user-messages can later re-emit it byte-for-byte.
func (s *Store) AppendStreamJSONLine(sessionID string, line string) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	return s.appendLine(s.StreamJSONPath(sessionID), []byte(line))
}

// LoadStreamJSONLines reads back raw stream-json lines persisted by
// AppendStreamJSONLine, in append order.
func (s *Store) LoadStreamJSONLines(sessionID string) ([]string, error) {
	file, err := os.Open(s.StreamJSONPath(sessionID))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream-json replay file: %w", err)
	}
	return lines, nil
}

// CloneSession copies sourceID's entire entry log onto a new session id,
// used when --fork-session starts a fresh id from a resumed session.
func (s *Store) CloneSession(sourceID, targetID string) error {
	entries, err := s.LoadEntries(sourceID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.appendEntry(targetID, e); err != nil {
			return err
		}
	}
	return nil
}

// SaveLastSession stores the last session id for a project hash.
func (s *Store) SaveLastSession(projectHash string, sessionID string) error {
	path := filepath.Join(s.BaseDir, "projects", projectHash, "last_session")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sessionID), 0o600); err != nil {
		return fmt.Errorf("write last session: %w", err)
	}
	return nil
}

// LoadLastSession returns the last session id for a project hash.
func (s *Store) LoadLastSession(projectHash string) (string, error) {
	path := filepath.Join(s.BaseDir, "projects", projectHash, "last_session")
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// ListSessions returns recent session ids sorted by modification time desc.
// limit <= 0 returns every session.
func (s *Store) ListSessions(limit int) ([]string, error) {
	dir := filepath.Join(s.BaseDir, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type entry struct {
		Name string
		Time time.Time
	}

	var list []entry
	for _, item := range entries {
		if item.IsDir() || strings.HasSuffix(item.Name(), ".stream.jsonl") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(item.Name(), filepath.Ext(item.Name()))
		list = append(list, entry{Name: name, Time: info.ModTime()})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Time.After(list[j].Time)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	result := make([]string, 0, len(list))
	for _, item := range list {
		result = append(result, item.Name)
	}
	return result, nil
}
