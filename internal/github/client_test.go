package github_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sourcemind/internal/domain"
	"sourcemind/internal/github"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const repoJSON = `{
  "name": "Hello-World",
  "full_name": "octocat/Hello-World",
  "description": "My first repository",
  "stargazers_count": 1500,
  "forks_count": 42,
  "language": "Go",
  "html_url": "https://github.com/octocat/Hello-World",
  "owner": {"login": "octocat", "avatar_url": "https://avatars.example.com/u/1"},
  "updated_at": "2024-01-02T03:04:05Z"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *github.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return github.NewClient(server.URL+"/", server.Client(), zap.NewNop())
}

func readmeBody(text string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	// GitHub wraps base64 content at 60 characters
	var wrapped strings.Builder
	for len(encoded) > 60 {
		wrapped.WriteString(encoded[:60])
		wrapped.WriteString(`\n`)
		encoded = encoded[60:]
	}
	wrapped.WriteString(encoded)
	return `{"content":"` + wrapped.String() + `","encoding":"base64"}`
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, github.NewClient("", nil, zap.NewNop()))
}

func TestFetchRepositoryMetadata(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/Hello-World", r.URL.Path)
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "sourcemind", r.Header.Get("User-Agent"))
		assert.Equal(t, "token ghp_secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(repoJSON))
	})

	metadata, err := client.FetchRepositoryMetadata(context.Background(), "octocat", "Hello-World", "ghp_secret")
	require.NoError(t, err)

	assert.Equal(t, "octocat/Hello-World", metadata.FullName)
	assert.Equal(t, 1500, metadata.StargazersCount)
	assert.Equal(t, 42, metadata.ForksCount)
	assert.Equal(t, "Go", metadata.Language)
	assert.Equal(t, "octocat", metadata.Owner.Login)
	assert.Equal(t, 2024, metadata.UpdatedAt.Year())
}

func TestFetchRepositoryMetadata_NoTokenNoAuthorizationHeader(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		_, _ = w.Write([]byte(repoJSON))
	})

	_, err := client.FetchRepositoryMetadata(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
}

func TestFetchRepositoryMetadata_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		wantKind    domain.ErrorKind
		wantMessage string
	}{
		{
			name:        "not found",
			status:      http.StatusNotFound,
			wantKind:    domain.KindNotFound,
			wantMessage: `Repository "octocat/missing" not found. Please check spelling or ensure it is public.`,
		},
		{
			name:        "forbidden",
			status:      http.StatusForbidden,
			wantKind:    domain.KindRateLimited,
			wantMessage: "GitHub API rate limit exceeded. Please provide an API Token.",
		},
		{
			name:        "too many requests",
			status:      http.StatusTooManyRequests,
			wantKind:    domain.KindRateLimited,
			wantMessage: "GitHub API rate limit exceeded. Please provide an API Token.",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			wantKind:    domain.KindUpstream,
			wantMessage: "GitHub API Error: 500 Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			metadata, err := client.FetchRepositoryMetadata(context.Background(), "octocat", "missing", "")
			require.Error(t, err)
			assert.Nil(t, metadata)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
			assert.Equal(t, tt.wantMessage, err.Error())
		})
	}
}

func TestFetchRepositoryMetadata_UpstreamCarriesStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchRepositoryMetadata(context.Background(), "octocat", "Hello-World", "")
	var typed *domain.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, http.StatusBadGateway, typed.Status)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestFetchRepositoryMetadata_MalformedBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name": `))
	})

	_, err := client.FetchRepositoryMetadata(context.Background(), "octocat", "Hello-World", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
}

func TestFetchRepositoryMetadata_TransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := github.NewClient(baseURL, nil, zap.NewNop())
	_, err := client.FetchRepositoryMetadata(context.Background(), "octocat", "Hello-World", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnexpected, domain.KindOf(err))
}

func TestFetchLanguageBreakdown(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/Hello-World/languages", r.URL.Path)
		_, _ = w.Write([]byte(`{"Go": 900, "Shell": 100}`))
	})

	languages, err := client.FetchLanguageBreakdown(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageBreakdown{"Go": 900, "Shell": 100}, languages)
}

func TestFetchLanguageBreakdown_NotFoundIsEmpty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	languages, err := client.FetchLanguageBreakdown(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
	assert.NotNil(t, languages)
	assert.Empty(t, languages)
}

func TestFetchLanguageBreakdown_RateLimited(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.FetchLanguageBreakdown(context.Background(), "octocat", "Hello-World", "")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchReadme_UTF8RoundTrip(t *testing.T) {
	t.Parallel()

	original := "# 你好 🌍\n\nCafé, naïve, 日本語のテキスト, and an emoji parade 🚀🔥✨ that spans several base64 lines."
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octocat/Hello-World/readme", r.URL.Path)
		_, _ = w.Write([]byte(readmeBody(original)))
	})

	readme, err := client.FetchReadme(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
	assert.Equal(t, original, readme)
}

func TestFetchReadme_NotFoundPlaceholder(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	readme, err := client.FetchReadme(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
	assert.Equal(t, domain.NoReadmePlaceholder, readme)
}

func TestFetchReadme_DecodeFailurePlaceholder(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"bad base64":       `{"content":"!!!not-base64!!!","encoding":"base64"}`,
		"unknown encoding": `{"content":"abc","encoding":"rot13"}`,
		"broken envelope":  `{"content":`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			readme, err := client.FetchReadme(context.Background(), "octocat", "Hello-World", "")
			require.NoError(t, err)
			assert.Equal(t, domain.ReadmeDecodePlaceholder, readme)
		})
	}
}

func TestFetchReadme_InvalidUTF8IsReplaced(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte("# Caf\xe9 project\n\nWorks offline."))
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":"` + encoded + `","encoding":"base64"}`))
	})

	readme, err := client.FetchReadme(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
	assert.Equal(t, "# Caf\uFFFD project\n\nWorks offline.", readme)
}

func TestFetchReadme_IgnoresWhitespaceInBase64(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte("# Hello, World"))
	spaced := encoded[:4] + " " + encoded[4:8] + `\t` + encoded[8:12] + `\r\n` + encoded[12:]
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":"` + spaced + `","encoding":"base64"}`))
	})

	readme, err := client.FetchReadme(context.Background(), "octocat", "Hello-World", "")
	require.NoError(t, err)
	assert.Equal(t, "# Hello, World", readme)
}

func TestFetchReadme_ServerErrorIsFatal(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchReadme(context.Background(), "octocat", "Hello-World", "")
	require.Error(t, err)
	assert.Equal(t, "GitHub API Error: 503 Service Unavailable", err.Error())
}

func TestDecodeContent(t *testing.T) {
	t.Parallel()

	text, err := github.DecodeContent(base64.StdEncoding.EncodeToString([]byte("héllo")), "base64")
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	text, err = github.DecodeContent("plain", "")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	text, err = github.DecodeContent("aMOp bGxv\n", "base64")
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	text, err = github.DecodeContent(base64.StdEncoding.EncodeToString([]byte{'o', 0xff, 'k'}), "base64")
	require.NoError(t, err)
	assert.Equal(t, "o\uFFFDk", text)

	_, err = github.DecodeContent("abc", "rot13")
	require.Error(t, err)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	require.NoError(t, github.StatusError("GitHub", http.StatusOK))
	assert.ErrorIs(t, github.StatusError("GitLab", http.StatusForbidden), domain.ErrRateLimited)
	assert.Equal(t, "GitLab API Error: 418 I'm a teapot", github.StatusError("GitLab", http.StatusTeapot).Error())
}
