package credentials_test

import (
	"os"
	"path/filepath"
	"sourcemind/internal/credentials"
	"sourcemind/internal/domain"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := credentials.NewMemoryStore(nil)
	assert.False(t, store.HasUsableKey())
	assert.Empty(t, store.Get(domain.SecretAIKey))

	store.Set(domain.SecretAIKey, "gemini-key-value")
	assert.True(t, store.HasUsableKey())
	assert.Equal(t, "gemini-key-value", store.Get(domain.SecretAIKey))

	store.Set(domain.SecretAIKey, "")
	assert.False(t, store.HasUsableKey())

	// The metadata token alone never makes the key usable
	store.Set(domain.SecretMetadataToken, "ghp_token")
	assert.False(t, store.HasUsableKey())
	assert.Equal(t, "ghp_token", store.Get(domain.SecretMetadataToken))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "credentials.env")
	store := credentials.NewFileStore(path, nil, zap.NewNop())
	assert.False(t, store.HasUsableKey())

	store.Set(domain.SecretAIKey, "gemini-key-value")
	store.Set(domain.SecretMetadataToken, "ghp_token")
	assert.False(t, store.Degraded())

	stored, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-key-value", stored[credentials.AIKeyEnv])
	assert.Equal(t, "ghp_token", stored[credentials.MetadataTokenEnv])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened := credentials.NewFileStore(path, nil, zap.NewNop())
	assert.True(t, reopened.HasUsableKey())
	assert.Equal(t, "ghp_token", reopened.Get(domain.SecretMetadataToken))
}

func TestFileStore_TightensExistingFileMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.env")
	require.NoError(t, os.WriteFile(path, []byte(credentials.MetadataTokenEnv+"=ghp_token\n"), 0o600))
	require.NoError(t, os.Chmod(path, 0o644))

	store := credentials.NewFileStore(path, nil, zap.NewNop())
	store.Set(domain.SecretAIKey, "gemini-key-value")
	require.False(t, store.Degraded())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stored, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		credentials.AIKeyEnv:         "gemini-key-value",
		credentials.MetadataTokenEnv: "ghp_token",
	}, stored)
}

func TestFileStore_EmptyValueErasesEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.env")
	store := credentials.NewFileStore(path, nil, zap.NewNop())

	store.Set(domain.SecretAIKey, "gemini-key-value")
	store.Set(domain.SecretMetadataToken, "ghp_token")
	store.Set(domain.SecretAIKey, "")

	stored, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.NotContains(t, stored, credentials.AIKeyEnv)
	assert.Equal(t, "ghp_token", stored[credentials.MetadataTokenEnv])
	assert.False(t, store.HasUsableKey())

	// Clearing the last entry removes the file
	store.Set(domain.SecretMetadataToken, "")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_FallbackSeedsWithoutWriting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.env")
	store := credentials.NewFileStore(path, map[domain.Secret]string{
		domain.SecretAIKey: "from-env",
	}, zap.NewNop())

	assert.True(t, store.HasUsableKey())
	assert.Equal(t, "from-env", store.Get(domain.SecretAIKey))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_FileWinsOverFallback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.env")
	require.NoError(t, godotenv.Write(map[string]string{credentials.AIKeyEnv: "from-file"}, path))

	store := credentials.NewFileStore(path, map[domain.Secret]string{
		domain.SecretAIKey: "from-env",
	}, zap.NewNop())
	assert.Equal(t, "from-file", store.Get(domain.SecretAIKey))
}

func TestFileStore_DegradesToMemory(t *testing.T) {
	t.Parallel()

	// A regular file where the parent directory should be makes every write fail
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	path := filepath.Join(blocker, "credentials.env")

	store := credentials.NewFileStore(path, nil, zap.NewNop())
	store.Set(domain.SecretAIKey, "gemini-key-value")

	assert.True(t, store.Degraded())
	assert.True(t, store.HasUsableKey())
	assert.Equal(t, "gemini-key-value", store.Get(domain.SecretAIKey))
}

func TestParseSecret(t *testing.T) {
	t.Parallel()

	s, ok := credentials.ParseSecret("gemini-key")
	assert.True(t, ok)
	assert.Equal(t, domain.SecretAIKey, s)

	s, ok = credentials.ParseSecret("github-token")
	assert.True(t, ok)
	assert.Equal(t, domain.SecretMetadataToken, s)

	_, ok = credentials.ParseSecret("password")
	assert.False(t, ok)

	assert.Equal(t, []domain.Secret{domain.SecretAIKey, domain.SecretMetadataToken}, credentials.Secrets())
}

func TestMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(not set)", credentials.Mask(""))
	assert.Equal(t, "********", credentials.Mask("short"))
	assert.Equal(t, "AIza…wxyz", credentials.Mask("AIzaSyD-0123456789wxyz"))
}
