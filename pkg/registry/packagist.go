// Package registry queries the Packagist package registry for published
// versions and can wait, with a bounded polling budget, for a freshly pushed
// tag to appear there.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/httputil"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// Client talks to the Packagist metadata API.
type Client struct {
	*httputil.Client
	baseURL string
}

// NewClient creates a Packagist client with the given response cache TTL.
// Availability polling always bypasses the cache.
func NewClient(cacheTTL time.Duration) (*Client, error) {
	cache, err := httputil.NewCache("", cacheTTL)
	if err != nil {
		return nil, err
	}
	return &Client{
		Client:  httputil.NewClient(cache.Namespace("packagist:"), nil),
		baseURL: "https://repo.packagist.org",
	}, nil
}

type p2Response struct {
	Packages map[string][]struct {
		Version string `json:"version"`
	} `json:"packages"`
}

// PublishedVersions lists the versions Packagist has indexed for pkg,
// skipping entries that are not semantic versions (dev branches).
func (c *Client) PublishedVersions(ctx context.Context, pkg string, refresh bool) ([]semver.Version, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))

	var raw []string
	err := c.Cached(ctx, pkg, refresh, &raw, func() error {
		var data p2Response
		if err := c.Get(ctx, fmt.Sprintf("%s/p2/%s.json", c.baseURL, pkg), &data); err != nil {
			return err
		}
		raw = raw[:0]
		for _, entry := range data.Packages[pkg] {
			raw = append(raw, entry.Version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return semver.ParseMany(raw), nil
}

// WaitForVersion polls until the given version is published for pkg,
// checking every interval up to timeout. Registry indexing lags tag pushes
// by a few minutes, and a parent's rewritten constraint is useless until the
// child version resolves there.
func (c *Client) WaitForVersion(ctx context.Context, pkg string, version semver.Version, interval, timeout time.Duration) error {
	logger := log.FromContext(ctx)
	deadline := time.Now().Add(timeout)
	for {
		published, err := c.PublishedVersions(ctx, pkg, true)
		if err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
			return err
		}
		for _, v := range published {
			if v.Equals(version) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New(errors.ErrCodeTimeout,
				"%s %s not published on packagist after %s", pkg, version, timeout)
		}
		logger.Info("waiting for packagist", "package", pkg, "version", version)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
