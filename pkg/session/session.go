package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"coreagent/pkg/message"
)

// DocumentVersion is the on-disk schema version for Document. Bump it and
// add an upgrade path in Store.Load if the shape below ever changes.
const DocumentVersion = 1

// ErrNotFound is returned when a requested session id has no file on disk.
var ErrNotFound = errors.New("session: not found")

// TokenUsage tracks cumulative token counters for a session (§4.8).
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Cached     int `json:"cached"`
	Cumulative int `json:"cumulative"`
}

// Document is the versioned, self-describing JSON document persisted for
// one session: metadata, the full canonical message list, and token
// counters. Cache-point markers are deliberately not part of the document —
// they are a volatile, provider-side hint reset on every load (§4.8).
type Document struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	AgentKind string    `json:"agent_kind,omitempty"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []message.Message `json:"messages"`
	Usage    TokenUsage        `json:"usage"`
}

// Store persists session documents under a per-user XDG data directory and
// tracks which session id was last active, for --resume.
type Store struct {
	mu  sync.Mutex
	dir string
}

// DefaultSessionsDir resolves the per-user session directory (honors
// COREAGENT_HOME as an override, like pkg/session's credential store).
func DefaultSessionsDir() (string, error) {
	if home := os.Getenv("COREAGENT_HOME"); home != "" {
		return filepath.Join(home, "sessions"), nil
	}
	dir := filepath.Join(xdg.DataHome, "coreagent", "sessions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("session: create sessions dir: %w", err)
	}
	return dir, nil
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create store dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// New creates a fresh, unsaved Document with a random id.
func New(model, agentKind, name string) *Document {
	now := time.Now().UTC()
	return &Document{
		Version:   DocumentVersion,
		ID:        uuid.NewString(),
		Name:      name,
		AgentKind: agentKind,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) lastActivePath() string {
	return filepath.Join(s.dir, "last-active")
}

// Save persists doc atomically (temp-file + rename) and marks it as the
// last-active session.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.UpdatedAt = time.Now().UTC()
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", doc.ID, err)
	}
	out = append(out, '\n')

	target := s.path(doc.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("session: rename into place: %w", err)
	}
	return s.setLastActiveNoLock(doc.ID)
}

// Load reads the session document for id. Per §4.8, loading resumes the
// agent loop in Idle and resets volatile caches — callers must discard any
// previously held cache-point markers rather than carrying them over, since
// Document never stores them.
func (s *Store) Load(id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadNoLock(id)
}

func (s *Store) loadNoLock(id string) (*Document, error) {
	buf, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("session: parse %s: %w", id, err)
	}
	return &doc, nil
}

// LastActive returns the id of the most recently saved session, for
// --resume. Returns ErrNotFound if no session has ever been saved.
func (s *Store) LastActive() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, err := os.ReadFile(s.lastActivePath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: read last-active marker: %w", err)
	}
	return string(buf), nil
}

// ResumeLast loads the last-active session, per --resume.
func (s *Store) ResumeLast() (*Document, error) {
	id, err := s.LastActive()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadNoLock(id)
}

func (s *Store) setLastActiveNoLock(id string) error {
	tmp := s.lastActivePath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(id), 0o600); err != nil {
		return fmt.Errorf("session: write last-active marker: %w", err)
	}
	return os.Rename(tmp, s.lastActivePath())
}

// List returns every session id found in the store, unordered.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("session: list %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && filepath.Ext(name) == ".json" {
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}
	return ids, nil
}
