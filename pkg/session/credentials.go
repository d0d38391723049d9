package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
)

// ErrNoKey is returned when a provider has no configured API key.
var ErrNoKey = errors.New("no api key configured for provider")

// CredentialFile is the on-disk shape of the per-user credential store: one
// API key per provider family ("anthropic", "openai", "gemini"), matching
// the backend-keyed shape of an OAuth auth.json but trimmed to injected
// static keys — no refresh flow, since token refresh talked to an external
// subscription backend that sits outside this module's scope.
type CredentialFile struct {
	Keys map[string]string `json:"keys"`
}

// CredentialStore is a mutex-guarded, atomically-persisted credential file.
type CredentialStore struct {
	path string
	mu   sync.Mutex
	file CredentialFile
}

// DefaultCredentialsPath resolves the per-user credentials file location
// using the XDG base directory spec (honors COREAGENT_HOME as an override).
func DefaultCredentialsPath() (string, error) {
	if home := os.Getenv("COREAGENT_HOME"); home != "" {
		return filepath.Join(home, "credentials.json"), nil
	}
	return xdg.ConfigFile("coreagent/credentials.json")
}

// LoadCredentials reads the credential file at path, creating an empty
// in-memory store if the file does not exist.
func LoadCredentials(path string) (*CredentialStore, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &CredentialStore{path: path, file: CredentialFile{Keys: map[string]string{}}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var f CredentialFile
	if err := json.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if f.Keys == nil {
		f.Keys = map[string]string{}
	}
	return &CredentialStore{path: path, file: f}, nil
}

// Key returns the API key for provider, falling back to the conventional
// environment variable (e.g. ANTHROPIC_API_KEY) when unset in the file.
func (s *CredentialStore) Key(provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.file.Keys[provider]; k != "" {
		return k, nil
	}
	if envVar, ok := envVarFor(provider); ok {
		if k := os.Getenv(envVar); k != "" {
			return k, nil
		}
	}
	return "", fmt.Errorf("%s: %w", provider, ErrNoKey)
}

// SetKey stores an API key for provider and persists atomically.
func (s *CredentialStore) SetKey(provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.Keys[provider] = key
	return s.saveNoLock()
}

func (s *CredentialStore) saveNoLock() error {
	out, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	out = append(out, '\n')
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write credentials temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename credentials file: %w", err)
	}
	return nil
}

func envVarFor(provider string) (string, bool) {
	switch provider {
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY", true
	case "openai":
		return "OPENAI_API_KEY", true
	case "gemini", "google":
		return "GEMINI_API_KEY", true
	default:
		return "", false
	}
}
