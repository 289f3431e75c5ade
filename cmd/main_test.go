package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sourcemind/internal/domain"
	"sync"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisJSON = `{
  "summary": "A tiny greeting repository.",
  "purpose": "Demonstrates the basics.",
  "techStack": ["Go", "Shell"],
  "keyFeatures": ["Says hello"],
  "installation": "go install ./...",
  "complexity": "Medium",
  "useCases": ["Teaching"],
  "innovationScore": 72,
  "suggestedImprovements": ["Add tests"],
  "repoStructure": [
    {"path": "main.go", "type": "file", "description": "Entry point",
     "dependencies": ["fmt", "./greet"], "potentialIssues": []}
  ],
  "projectBlueprint": [
    {"path": "package.json", "content": "{\"name\": \"hello\", \"dependencies\": {\"express\": \"^4.18.2\"}}",
     "description": "Package manifest"}
  ],
  "securityAnalysis": {
    "score": 90,
    "riskLevel": "Low",
    "vulnerabilities": [],
    "complianceCheck": ["MIT"]
  }
}`

var setupOnce sync.Once //nolint:gochecknoglobals // commands are package globals

// execute runs the root command with args and returns stdout, stderr and the error
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	setupOnce.Do(setupCommands)
	resetFlags()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default so runs do not leak into each other
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, cmd := range []*pflag.FlagSet{analyzeCmd.Flags(), credentialsSetCmd.Flags()} {
		cmd.VisitAll(reset)
	}
}

// clearEnv blanks the variables the config loader reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GITHUB_BASE_URL", "GITHUB_TOKEN", "GITLAB_BASE_URL", "GITLAB_TOKEN",
		"SOURCEMIND_METADATA_PROVIDER", "SOURCEMIND_AI_PROVIDER", "SOURCEMIND_AI_MODEL",
		"GEMINI_API_KEY", "API_KEY", "SOURCEMIND_AI_BASE_URL", "SOURCEMIND_CREDENTIALS_FILE",
		"SOURCEMIND_OUTPUT_FORMAT", "SOURCEMIND_OUTPUT_FILE", "SOURCEMIND_LOG_LEVEL",
		"ANALYSIS_TIMEOUT_MINUTES",
	} {
		t.Setenv(name, "")
	}
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "test-config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	return configFile
}

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/Hello-World", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":             "Hello-World",
			"full_name":        "octocat/Hello-World",
			"description":      "My first repository",
			"stargazers_count": 1500,
			"forks_count":      42,
			"language":         "Go",
			"html_url":         "https://github.com/octocat/Hello-World",
			"owner":            map[string]any{"login": "octocat"},
			"updated_at":       "2026-01-01T00:00:00Z",
		})
	})
	mux.HandleFunc("/repos/octocat/Hello-World/languages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Go": 900, "Shell": 100}`))
	})
	mux.HandleFunc("/repos/octocat/Hello-World/readme", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":  base64.StdEncoding.EncodeToString([]byte("# Hello")),
			"encoding": "base64",
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": analysisJSON},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func analyzeConfig(t *testing.T, githubURL, modelURL, apiKey string) string {
	t.Helper()

	return createTempConfig(t, `
github:
  base_url: "`+githubURL+`"

ai:
  provider: "openai"
  base_url: "`+modelURL+`"
  api_key: "`+apiKey+`"

credentials:
  persist: false

logging:
  level: "error"
`)
}

func TestSetupCommands(t *testing.T) {
	setupOnce.Do(setupCommands)

	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "analyze")
	assert.Contains(t, names, "credentials")

	sub := make([]string, 0)
	for _, cmd := range credentialsCmd.Commands() {
		sub = append(sub, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"set", "show", "clear"}, sub)

	for _, flag := range []string{"format", "output", "title", "timeout", "provider", "no-persist"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(flag), "missing --%s", flag)
	}
}

func TestAnalyze_JSONReport(t *testing.T) {
	clearEnv(t)
	ghServer := newGitHubServer(t)
	model := newModelServer(t)
	configPath := analyzeConfig(t, ghServer.URL, model.URL, "sk-test")
	reportPath := filepath.Join(t.TempDir(), "out", "report.json")

	_, stderr, err := execute(t, "analyze", "octocat/Hello-World",
		"--config", configPath, "--format", "json", "--output", reportPath, "--title", "Weekly")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Fetching metadata for octocat/Hello-World")
	assert.Contains(t, stderr, "Report written to "+reportPath)

	content, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal(content, &report))
	assert.Equal(t, "Weekly", report["title"])
	assert.InDelta(t, 1500, report["repository"].(map[string]any)["stargazers_count"], 0)
	assert.InDelta(t, 72, report["analysis"].(map[string]any)["innovationScore"], 0)

	manifests := report["manifests"].([]any)
	require.Len(t, manifests, 1)
	assert.Equal(t, "hello", manifests[0].(map[string]any)["module"])
}

func TestAnalyze_ConsoleReport(t *testing.T) {
	clearEnv(t)
	ghServer := newGitHubServer(t)
	model := newModelServer(t)
	configPath := analyzeConfig(t, ghServer.URL, model.URL, "sk-test")

	stdout, _, err := execute(t, "analyze", "octocat/Hello-World", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "SourceMind Analysis")
	assert.Contains(t, stdout, "Innovation 72/100")
	assert.Contains(t, stdout, "Says hello")
}

func TestAnalyze_ZeroTimeoutKeepsConfiguredValue(t *testing.T) {
	clearEnv(t)
	ghServer := newGitHubServer(t)
	model := newModelServer(t)
	configPath := analyzeConfig(t, ghServer.URL, model.URL, "sk-test")

	stdout, _, err := execute(t, "analyze", "octocat/Hello-World", "--config", configPath, "--timeout", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Innovation 72/100")
}

func TestAnalyze_MissingCredential(t *testing.T) {
	clearEnv(t)
	configPath := analyzeConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "")

	_, stderr, err := execute(t, "analyze", "octocat/Hello-World", "--config", configPath)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrMissingCredential)

	var reported reportedError
	require.ErrorAs(t, err, &reported)
	assert.Contains(t, stderr, "Gemini API Key is required")
	assert.Contains(t, stderr, "sourcemind credentials set gemini-key")
}

func TestAnalyze_InvalidInput(t *testing.T) {
	clearEnv(t)
	configPath := analyzeConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "sk-test")

	_, stderr, err := execute(t, "analyze", "octocat", "--config", configPath)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, stderr, "Please format as 'owner/repo'")
	assert.Contains(t, stderr, "sourcemind analyze octocat/Hello-World")
}

func TestAnalyze_RepositoryNotFound(t *testing.T) {
	clearEnv(t)
	ghServer := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ghServer.Close)
	configPath := analyzeConfig(t, ghServer.URL, "http://127.0.0.1:1", "sk-test")

	_, stderr, err := execute(t, "analyze", "octocat/missing", "--config", configPath)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, stderr, `Repository "octocat/missing" not found`)
}

func TestAnalyze_RequiresArgument(t *testing.T) {
	clearEnv(t)

	_, _, err := execute(t, "analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestCredentials_SetShowClear(t *testing.T) {
	clearEnv(t)
	credentialsFile := filepath.Join(t.TempDir(), "sourcemind", "credentials.env")
	t.Setenv("SOURCEMIND_CREDENTIALS_FILE", credentialsFile)

	stdout, _, err := execute(t, "credentials", "set", "gemini-key", "AIzaSyExampleKey1234")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Stored gemini-key (AIza…1234)")

	info, err := os.Stat(credentialsFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stdout, _, err = execute(t, "credentials", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "AIza…1234")
	assert.Contains(t, stdout, "(not set)")
	assert.NotContains(t, stdout, "AIzaSyExampleKey1234")

	stdout, _, err = execute(t, "credentials", "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleared all stored credentials")

	_, err = os.Stat(credentialsFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCredentials_SetUnknown(t *testing.T) {
	clearEnv(t)

	_, _, err := execute(t, "credentials", "set", "aws-key", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown credential "aws-key"`)
}
