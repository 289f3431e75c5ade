package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sourcemind/internal/domain"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint
	DefaultBaseURL = "https://api.github.com"

	acceptHeader = "application/vnd.github.v3+json"
	userAgent    = "sourcemind"
)

// Client is a thin wrapper around the GitHub REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new GitHub client. An empty baseURL selects the public API.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

type readmeEnvelope struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FetchRepositoryMetadata returns the repository record
func (c *Client) FetchRepositoryMetadata(
	ctx context.Context,
	owner, name, token string,
) (*domain.RepositoryMetadata, error) {
	c.logger.Debug("Starting FetchRepositoryMetadata",
		zap.String("owner", owner),
		zap.String("name", name),
		zap.Bool("token", token != ""))

	status, body, err := c.get(ctx, repoPath(owner, name), token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		c.logger.Debug("Repository not found", zap.String("owner", owner), zap.String("name", name))
		return nil, domain.NewError(domain.KindNotFound,
			fmt.Sprintf("Repository %q not found. Please check spelling or ensure it is public.", owner+"/"+name),
			nil)
	}
	if err := StatusError("GitHub", status); err != nil {
		return nil, err
	}

	var metadata domain.RepositoryMetadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		c.logger.Error("Failed to decode repository record", zap.Error(err))
		return nil, domain.NewUpstreamError(status, "GitHub API returned an unreadable repository record.",
			fmt.Errorf("decoding repository: %w", err))
	}

	c.logger.Debug("Completed FetchRepositoryMetadata",
		zap.String("full_name", metadata.FullName),
		zap.Int("stars", metadata.StargazersCount))

	return &metadata, nil
}

// FetchLanguageBreakdown returns bytes per language. A missing resource is an
// empty breakdown.
func (c *Client) FetchLanguageBreakdown(
	ctx context.Context,
	owner, name, token string,
) (domain.LanguageBreakdown, error) {
	c.logger.Debug("Starting FetchLanguageBreakdown", zap.String("owner", owner), zap.String("name", name))

	status, body, err := c.get(ctx, repoPath(owner, name)+"/languages", token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		c.logger.Debug("Languages not found, using empty breakdown")
		return domain.LanguageBreakdown{}, nil
	}
	if err := StatusError("GitHub", status); err != nil {
		return nil, err
	}

	languages := domain.LanguageBreakdown{}
	if err := json.Unmarshal(body, &languages); err != nil {
		c.logger.Error("Failed to decode language breakdown", zap.Error(err))
		return nil, domain.NewUpstreamError(status, "GitHub API returned an unreadable language breakdown.",
			fmt.Errorf("decoding languages: %w", err))
	}

	c.logger.Debug("Completed FetchLanguageBreakdown", zap.Int("languages", len(languages)))

	return languages, nil
}

// FetchReadme returns the decoded README text, or a placeholder when the
// repository has none or its content cannot be decoded
func (c *Client) FetchReadme(ctx context.Context, owner, name, token string) (string, error) {
	c.logger.Debug("Starting FetchReadme", zap.String("owner", owner), zap.String("name", name))

	status, body, err := c.get(ctx, repoPath(owner, name)+"/readme", token)
	if err != nil {
		return "", err
	}

	if status == http.StatusNotFound {
		c.logger.Debug("README not found")
		return domain.NoReadmePlaceholder, nil
	}
	if err := StatusError("GitHub", status); err != nil {
		return "", err
	}

	var envelope readmeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Warn("Failed to decode README envelope", zap.Error(err))
		return domain.ReadmeDecodePlaceholder, nil
	}

	text, err := DecodeContent(envelope.Content, envelope.Encoding)
	if err != nil {
		c.logger.Warn("Failed to decode README content",
			zap.String("encoding", envelope.Encoding),
			zap.Error(err))
		return domain.ReadmeDecodePlaceholder, nil
	}

	c.logger.Debug("Completed FetchReadme", zap.Int("readme_bytes", len(text)))

	return text, nil
}

func (c *Client) get(ctx context.Context, path, token string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, domain.NewUnexpectedError(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("GitHub request failed", zap.String("path", path), zap.Error(err))
		return 0, nil, domain.NewUnexpectedError(fmt.Errorf("executing request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.NewUnexpectedError(fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("GitHub response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	return resp.StatusCode, body, nil
}

func repoPath(owner, name string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
}

// StatusError maps a non-success status other than 404 to a typed error.
// It returns nil for 2xx.
func StatusError(provider string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return domain.NewError(domain.KindRateLimited,
			provider+" API rate limit exceeded. Please provide an API Token.", nil)
	default:
		return domain.NewUpstreamError(status,
			fmt.Sprintf("%s API Error: %d %s", provider, status, http.StatusText(status)),
			fmt.Errorf("unexpected status %d", status))
	}
}
