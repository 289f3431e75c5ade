package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"sourcemind/internal/domain"
	"sourcemind/internal/github"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"
)

const (
	readmeFile = "README.md"
	readmeRef  = "HEAD"

	// languageScale turns GitLab percentage shares into integer weights
	languageScale = 100
)

// Client serves repository metadata from a GitLab instance
type Client struct {
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a new GitLab client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{baseURL: baseURL, logger: logger}
}

// api builds a client for one call because the token is a per-run input
func (c *Client) api(token string) (*gitlab.Client, error) {
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(c.baseURL), gitlab.WithoutRetries())
	if err != nil {
		return nil, domain.NewUnexpectedError(fmt.Errorf("failed to create GitLab client: %w", err))
	}
	return client, nil
}

// FetchRepositoryMetadata returns the project record mapped onto repository metadata
func (c *Client) FetchRepositoryMetadata(
	ctx context.Context,
	owner, name, token string,
) (*domain.RepositoryMetadata, error) {
	projectPath := owner + "/" + name
	c.logger.Debug("Starting FetchRepositoryMetadata",
		zap.String("project_path", projectPath),
		zap.Bool("token", token != ""))

	client, err := c.api(token)
	if err != nil {
		return nil, err
	}

	project, resp, err := client.Projects.GetProject(projectPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			c.logger.Debug("Project not found", zap.String("project_path", projectPath))
			return nil, domain.NewError(domain.KindNotFound,
				fmt.Sprintf("Repository %q not found. Please check spelling or ensure it is public.", projectPath),
				err)
		}
		c.logger.Error("Failed to get project from API",
			zap.String("project_path", projectPath),
			zap.Error(err))
		return nil, mapError(resp, err)
	}

	metadata := &domain.RepositoryMetadata{
		Name:            project.Name,
		FullName:        project.PathWithNamespace,
		Description:     project.Description,
		StargazersCount: project.StarCount,
		ForksCount:      project.ForksCount,
		HTMLURL:         project.WebURL,
		Owner:           domain.RepositoryOwner{Login: owner},
	}
	if project.Namespace != nil {
		metadata.Owner = domain.RepositoryOwner{
			Login:     project.Namespace.FullPath,
			AvatarURL: project.Namespace.AvatarURL,
		}
	}
	if project.LastActivityAt != nil {
		metadata.UpdatedAt = project.LastActivityAt.UTC().Truncate(time.Second)
	}

	c.logger.Debug("Completed FetchRepositoryMetadata",
		zap.String("full_name", metadata.FullName),
		zap.Int("stars", metadata.StargazersCount))

	return metadata, nil
}

// FetchLanguageBreakdown returns language weights. GitLab only reports
// percentages, so each share is scaled to an integer weight.
func (c *Client) FetchLanguageBreakdown(
	ctx context.Context,
	owner, name, token string,
) (domain.LanguageBreakdown, error) {
	projectPath := owner + "/" + name
	c.logger.Debug("Starting FetchLanguageBreakdown", zap.String("project_path", projectPath))

	client, err := c.api(token)
	if err != nil {
		return nil, err
	}

	shares, resp, err := client.Projects.GetProjectLanguages(projectPath, gitlab.WithContext(ctx))
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			c.logger.Debug("Languages not found, using empty breakdown")
			return domain.LanguageBreakdown{}, nil
		}
		c.logger.Error("Failed to get project languages",
			zap.String("project_path", projectPath),
			zap.Error(err))
		return nil, mapError(resp, err)
	}

	languages := domain.LanguageBreakdown{}
	if shares != nil {
		for lang, percent := range *shares {
			languages[lang] = int64(float64(percent)*languageScale + 0.5)
		}
	}

	c.logger.Debug("Completed FetchLanguageBreakdown", zap.Int("languages", len(languages)))

	return languages, nil
}

// FetchReadme returns README.md at HEAD, or a placeholder when it is absent
// or cannot be decoded
func (c *Client) FetchReadme(ctx context.Context, owner, name, token string) (string, error) {
	projectPath := owner + "/" + name
	c.logger.Debug("Starting FetchReadme", zap.String("project_path", projectPath))

	client, err := c.api(token)
	if err != nil {
		return "", err
	}

	file, resp, err := client.RepositoryFiles.GetFile(projectPath, readmeFile, &gitlab.GetFileOptions{
		Ref: gitlab.Ptr(readmeRef),
	}, gitlab.WithContext(ctx))
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			c.logger.Debug("README not found")
			return domain.NoReadmePlaceholder, nil
		}
		c.logger.Error("Failed to get README",
			zap.String("project_path", projectPath),
			zap.Error(err))
		return "", mapError(resp, err)
	}

	text, err := github.DecodeContent(file.Content, file.Encoding)
	if err != nil {
		c.logger.Warn("Failed to decode README content",
			zap.String("encoding", file.Encoding),
			zap.Error(err))
		return domain.ReadmeDecodePlaceholder, nil
	}

	c.logger.Debug("Completed FetchReadme", zap.Int("readme_bytes", len(text)))

	return text, nil
}

func statusOf(resp *gitlab.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

// mapError turns a failed call into a typed error. Calls without a response
// never reached the server.
func mapError(resp *gitlab.Response, err error) error {
	status := statusOf(resp)
	if status == 0 {
		return domain.NewUnexpectedError(err)
	}
	if typed := github.StatusError("GitLab", status); typed != nil {
		return typed
	}
	return domain.NewUpstreamError(status, fmt.Sprintf("GitLab API Error: %d %s", status, http.StatusText(status)), err)
}
