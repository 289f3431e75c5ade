// Package credentials holds the AI key and the metadata-API token.
//
// Values live in memory and are mirrored to a dotenv file so they survive
// between invocations. The file is best effort: when it cannot be read or
// written the store keeps working in memory and only logs a warning.
package credentials

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sourcemind/internal/domain"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Keys used in the credentials file
const (
	AIKeyEnv         = "SOURCEMIND_GEMINI_KEY"
	MetadataTokenEnv = "SOURCEMIND_GITHUB_TOKEN"
)

var envKeys = map[domain.Secret]string{ //nolint:gochecknoglobals // fixed key table
	domain.SecretAIKey:         AIKeyEnv,
	domain.SecretMetadataToken: MetadataTokenEnv,
}

// Secrets lists the known secrets in display order
func Secrets() []domain.Secret {
	return []domain.Secret{domain.SecretAIKey, domain.SecretMetadataToken}
}

// ParseSecret maps a CLI name to a secret
func ParseSecret(name string) (domain.Secret, bool) {
	s := domain.Secret(name)
	_, ok := envKeys[s]
	return s, ok
}

// MemoryStore keeps credentials in memory only
type MemoryStore struct {
	mu     sync.RWMutex
	values map[domain.Secret]string
}

// NewMemoryStore creates a store seeded with the given values
func NewMemoryStore(seed map[domain.Secret]string) *MemoryStore {
	values := make(map[domain.Secret]string, len(seed))
	for k, v := range seed {
		if v != "" {
			values[k] = v
		}
	}
	return &MemoryStore{values: values}
}

func (s *MemoryStore) Get(secret domain.Secret) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[secret]
}

func (s *MemoryStore) Set(secret domain.Secret, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.values, secret)
		return
	}
	s.values[secret] = value
}

func (s *MemoryStore) HasUsableKey() bool {
	return s.Get(domain.SecretAIKey) != ""
}

// FileStore mirrors credentials to a dotenv file
type FileStore struct {
	path   string
	memory *MemoryStore
	logger *zap.Logger

	mu       sync.Mutex
	degraded bool
}

// NewFileStore loads the credentials file at path. Values in fallback fill
// secrets the file does not hold; they are never written to disk.
func NewFileStore(path string, fallback map[domain.Secret]string, logger *zap.Logger) *FileStore {
	s := &FileStore{
		path:   path,
		memory: NewMemoryStore(fallback),
		logger: logger,
	}

	stored, err := godotenv.Read(path)
	switch {
	case err == nil:
		for secret, key := range envKeys {
			if v := stored[key]; v != "" {
				s.memory.Set(secret, v)
			}
		}
		logger.Debug("Loaded credentials file",
			zap.String("path", path),
			zap.Int("entries", len(stored)))
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("No credentials file yet", zap.String("path", path))
	default:
		s.degraded = true
		logger.Warn("Credentials file unreadable, keeping credentials in memory only",
			zap.String("path", path),
			zap.Error(err))
	}

	return s
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Degraded reports whether the store fell back to memory-only persistence
func (s *FileStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FileStore) Get(secret domain.Secret) string {
	return s.memory.Get(secret)
}

func (s *FileStore) HasUsableKey() bool {
	return s.memory.HasUsableKey()
}

// Set updates the value and rewrites the file. Write failures are logged and
// swallowed.
func (s *FileStore) Set(secret domain.Secret, value string) {
	s.memory.Set(secret, value)

	key, ok := envKeys[secret]
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(key, value); err != nil {
		s.degraded = true
		s.logger.Warn("Failed to persist credential, keeping it in memory only",
			zap.String("secret", string(secret)),
			zap.String("path", s.path),
			zap.Error(err))
		return
	}

	s.logger.Debug("Persisted credential",
		zap.String("secret", string(secret)),
		zap.Bool("present", value != ""))
}

func (s *FileStore) persist(key, value string) error {
	stored, err := godotenv.Read(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		stored = map[string]string{}
	}

	if value == "" {
		if _, exists := stored[key]; !exists {
			return nil
		}
		delete(stored, key)
	} else {
		stored[key] = value
	}

	if len(stored) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	content, err := godotenv.Marshal(stored)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	// An existing file keeps its mode on open; tighten it before the secret lands
	if err := file.Chmod(0o600); err != nil {
		_ = file.Close()
		return err
	}
	if _, err := file.WriteString(content + "\n"); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Mask renders a secret for display without revealing it
func Mask(value string) string {
	runes := []rune(value)
	switch {
	case len(runes) == 0:
		return "(not set)"
	case len(runes) <= 8:
		return "********"
	default:
		return string(runes[:4]) + "…" + string(runes[len(runes)-4:])
	}
}
