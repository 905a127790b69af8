package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/ratecontrol"
)

const githubBaseURL = "https://api.github.com"

// GitHubClient looks up users, repositories, and organizations via the
// GitHub REST API. All four lookups share the "github" family rate limiter
// since they hit the same provider quota.
type GitHubClient struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *zap.Logger
}

func NewGitHubClient(httpClient *http.Client, token string, logger *zap.Logger) *GitHubClient {
	return &GitHubClient{http: httpClient, baseURL: githubBaseURL, token: token, logger: logger}
}

func (c *GitHubClient) get(ctx context.Context, path string, out interface{}) error {
	if err := ratecontrol.LimiterFor("github").Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github decode: %w", err)
	}
	return nil
}

func (c *GitHubClient) UserByName(ctx context.Context, q GitHubUserQuery) (*GitHubUserOutput, error) {
	var body struct {
		Login       string `json:"login"`
		Name        string `json:"name"`
		PublicRepos int    `json:"public_repos"`
		Followers   int    `json:"followers"`
		Bio         string `json:"bio"`
		Location    string `json:"location"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(q.Username), &body); err != nil {
		return nil, err
	}
	c.logger.Debug("github user lookup completed", zap.String("login", body.Login))
	return &GitHubUserOutput{
		Login:       body.Login,
		Name:        body.Name,
		PublicRepos: body.PublicRepos,
		Followers:   body.Followers,
		Bio:         body.Bio,
		Location:    body.Location,
	}, nil
}

func (c *GitHubClient) RepoByName(ctx context.Context, q GitHubRepoQuery) (*GitHubRepoOutput, error) {
	var body struct {
		Name            string   `json:"name"`
		FullName        string   `json:"full_name"`
		Description     string   `json:"description"`
		StargazersCount int      `json:"stargazers_count"`
		ForksCount      int      `json:"forks_count"`
		Language        string   `json:"language"`
		Topics          []string `json:"topics"`
	}
	if err := c.get(ctx, "/repos/"+q.FullName, &body); err != nil {
		return nil, err
	}
	c.logger.Debug("github repo lookup completed", zap.String("full_name", body.FullName))
	return &GitHubRepoOutput{
		Name:        body.Name,
		FullName:    body.FullName,
		Description: body.Description,
		Stars:       body.StargazersCount,
		Forks:       body.ForksCount,
		Language:    body.Language,
		Topics:      body.Topics,
	}, nil
}

func (c *GitHubClient) OrgByName(ctx context.Context, q GitHubOrgQuery) (*GitHubOrgOutput, error) {
	var org struct {
		Login       string `json:"login"`
		Name        string `json:"name"`
		Description string `json:"description"`
		PublicRepos int    `json:"public_repos"`
	}
	if err := c.get(ctx, "/orgs/"+url.PathEscape(q.OrgName), &org); err != nil {
		return nil, err
	}

	limit := q.MemberLimit
	if limit <= 0 {
		limit = 5
	}
	var members []struct {
		Login string `json:"login"`
	}
	// Member listing is best-effort: a private-members 403 should not void
	// the org lookup itself.
	memberLogins := make([]string, 0, limit)
	if err := c.get(ctx, fmt.Sprintf("/orgs/%s/members?per_page=%d", url.PathEscape(q.OrgName), limit), &members); err == nil {
		for i, m := range members {
			if i >= limit {
				break
			}
			memberLogins = append(memberLogins, m.Login)
		}
	}

	c.logger.Debug("github org lookup completed",
		zap.String("login", org.Login),
		zap.Int("members", len(memberLogins)),
	)
	return &GitHubOrgOutput{
		Login:       org.Login,
		Name:        org.Name,
		Description: org.Description,
		PublicRepos: org.PublicRepos,
		Members:     memberLogins,
	}, nil
}

func (c *GitHubClient) ReposByLanguage(ctx context.Context, q GitHubLanguageQuery) (*GitHubLanguageOutput, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 3
	}
	var body struct {
		Items []struct {
			Name            string `json:"name"`
			FullName        string `json:"full_name"`
			StargazersCount int    `json:"stargazers_count"`
			HTMLURL         string `json:"html_url"`
		} `json:"items"`
	}
	path := fmt.Sprintf("/search/repositories?q=language:%s&sort=stars&order=desc&per_page=%d",
		url.QueryEscape(q.Language), limit)
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}

	out := &GitHubLanguageOutput{Results: make([]GitHubLanguageItem, 0, len(body.Items))}
	for _, r := range body.Items {
		out.Results = append(out.Results, GitHubLanguageItem{
			Name:     r.Name,
			FullName: r.FullName,
			Stars:    r.StargazersCount,
			URL:      r.HTMLURL,
		})
	}

	c.logger.Debug("github language search completed",
		zap.String("language", q.Language),
		zap.Int("results", len(out.Results)),
	)
	return out, nil
}
