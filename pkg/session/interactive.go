package session

import (
	"fmt"

	"coreagent/pkg/agent"
	"coreagent/pkg/harness"
)

// Session binds a persisted Document to the live agent.Loop driving it,
// exposing the interactive-mode verb commands as idempotent methods: each
// one is safe to call repeatedly and leaves both sides — the Document and
// the Loop's in-memory conversation — consistent with each other.
type Session struct {
	store *Store
	loop  *agent.Loop
	doc   *Document
}

// NewSession binds doc to loop, storing future saves through store.
func NewSession(store *Store, loop *agent.Loop, doc *Document) *Session {
	return &Session{store: store, loop: loop, doc: doc}
}

// Document returns the bound document. Callers must not mutate Messages
// directly — use Save to capture the loop's current conversation first.
func (s *Session) Document() *Document {
	return s.doc
}

// Clear wipes the conversation on both the loop and the document. Calling it
// twice in a row is a no-op the second time.
func (s *Session) Clear() error {
	if err := s.loop.Reset(); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	s.doc.Messages = nil
	return nil
}

// SwitchModel changes the model used for subsequent turns. Switching to the
// already-current model is a no-op.
func (s *Session) SwitchModel(model string) {
	s.loop.SetModel(model)
	s.doc.Model = model
}

// Save snapshots the loop's conversation into the document and persists it.
// Saving an unchanged session just rewrites the same content.
func (s *Session) Save() error {
	s.doc.Messages = s.loop.Conversation()
	if err := s.store.Save(s.doc); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Load replaces the bound document and the loop's conversation with the
// session saved under id. Per §4.8, cache-point markers are not restored —
// the loop resumes Idle with a clean cache.
func (s *Session) Load(id string) error {
	doc, err := s.store.Load(id)
	if err != nil {
		return fmt.Errorf("session: load %s: %w", id, err)
	}
	if err := s.loop.Restore(doc.Messages); err != nil {
		return fmt.Errorf("session: load %s: %w", id, err)
	}
	s.loop.SetModel(doc.Model)
	s.doc = doc
	return nil
}

// Usage returns the cumulative token counters recorded so far.
func (s *Session) Usage() TokenUsage {
	return s.doc.Usage
}

// RecordUsage folds a completed turn's usage into the session's cumulative
// counters. Callers invoke it once per Submit call; a nil or zero Usage is a
// no-op.
func (s *Session) RecordUsage(result *harness.TurnResult) {
	if result == nil || result.Usage == nil {
		return
	}
	s.doc.Usage.Prompt += result.Usage.InputTokens
	s.doc.Usage.Completion += result.Usage.OutputTokens
	s.doc.Usage.Cached += result.Usage.CachedTokens
	s.doc.Usage.Cumulative += result.Usage.TotalTokens
}

// ToggleCompaction flips between-turn compaction on or off, returning the
// new state.
func (s *Session) ToggleCompaction() bool {
	return s.loop.ToggleCompaction()
}
