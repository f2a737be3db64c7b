// Package github reports commit statuses to the GitHub API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"stackline/src/errs"
)

var (
	ErrInvalidURL = errors.New("not a GitHub revision URL")
)

var repositoryURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)`)

// Client is a GitHub commit status API client
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new GitHub client
func NewClient(token string) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://api.github.com",
	}
}

// WithBaseURL points the client at another API host, such as GitHub Enterprise.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// ParseRepositoryURL extracts owner and repo from a revision or repository URL
func ParseRepositoryURL(url string) (owner, repo string, err error) {
	matches := repositoryURLPattern.FindStringSubmatch(url)
	if matches == nil {
		return "", "", errs.Wrap(errs.KindParse, ErrInvalidURL, "%s", url)
	}
	return matches[1], matches[2], nil
}

// CreateStatus sets a commit status on sha
func (c *Client) CreateStatus(ctx context.Context, owner, repo, sha string, status StatusRequest) (*Status, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", c.baseURL, owner, repo, sha)

	body, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Upstream("CreateStatus", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errs.Upstream("CreateStatus", fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, string(respBody)))
	}

	var created Status
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "decode status response")
	}

	return &created, nil
}
