// Package githubapi is a small GitHub REST client covering the operations
// the publish phase needs: releases, generated release notes, and label
// management.
package githubapi

import (
	"context"
	"fmt"
	"time"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/httputil"
)

// Client talks to the GitHub REST API for a fixed token.
type Client struct {
	*httputil.Client
	baseURL string
}

// NewClient creates a GitHub client. An empty token selects unauthenticated
// requests, which are enough for public repositories but rate-limited.
func NewClient(token string, cacheTTL time.Duration) (*Client, error) {
	cache, err := httputil.NewCache("", cacheTTL)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &Client{
		Client:  httputil.NewClient(cache.Namespace("github:"), headers),
		baseURL: "https://api.github.com",
	}, nil
}

// Release is a GitHub release object.
type Release struct {
	ID         int64  `json:"id,omitempty"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name,omitempty"`
	Body       string `json:"body,omitempty"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	HTMLURL    string `json:"html_url,omitempty"`
}

// GetReleaseByTag fetches the release for a tag, or NOT_FOUND if none
// exists.
func (c *Client) GetReleaseByTag(ctx context.Context, slug, tag string) (*Release, error) {
	var rel Release
	url := fmt.Sprintf("%s/repos/%s/releases/tags/%s", c.baseURL, slug, tag)
	if err := c.Get(ctx, url, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// CreateRelease creates a new release.
func (c *Client) CreateRelease(ctx context.Context, slug string, rel Release) (*Release, error) {
	var created Release
	url := fmt.Sprintf("%s/repos/%s/releases", c.baseURL, slug)
	if err := c.Post(ctx, url, rel, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// EditRelease updates an existing release by ID.
func (c *Client) EditRelease(ctx context.Context, slug string, id int64, rel Release) (*Release, error) {
	var updated Release
	url := fmt.Sprintf("%s/repos/%s/releases/%d", c.baseURL, slug, id)
	if err := c.Patch(ctx, url, rel, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpsertRelease creates the release for rel.TagName or, if one already
// exists, updates it in place. Re-running a publish is therefore safe.
func (c *Client) UpsertRelease(ctx context.Context, slug string, rel Release) (*Release, error) {
	existing, err := c.GetReleaseByTag(ctx, slug, rel.TagName)
	if errors.Is(err, errors.ErrCodeNotFound) {
		return c.CreateRelease(ctx, slug, rel)
	}
	if err != nil {
		return nil, err
	}
	return c.EditRelease(ctx, slug, existing.ID, rel)
}

// GenerateReleaseNotes asks GitHub to generate release notes for tag,
// relative to previousTag when given.
func (c *Client) GenerateReleaseNotes(ctx context.Context, slug, tag, previousTag string) (string, error) {
	body := map[string]string{"tag_name": tag}
	if previousTag != "" {
		body["previous_tag_name"] = previousTag
	}
	var notes struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}
	url := fmt.Sprintf("%s/repos/%s/releases/generate-notes", c.baseURL, slug)
	if err := c.Post(ctx, url, body, &notes); err != nil {
		return "", err
	}
	return notes.Body, nil
}
