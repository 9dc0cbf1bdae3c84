package githubapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Label is a GitHub issue label.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// ListLabels returns the labels defined on a repository.
func (c *Client) ListLabels(ctx context.Context, slug string) ([]Label, error) {
	var labels []Label
	u := fmt.Sprintf("%s/repos/%s/labels?per_page=100", c.baseURL, slug)
	if err := c.Get(ctx, u, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// CreateLabel creates a label on a repository.
func (c *Client) CreateLabel(ctx context.Context, slug string, label Label) error {
	u := fmt.Sprintf("%s/repos/%s/labels", c.baseURL, slug)
	return c.Post(ctx, u, label, nil)
}

// UpdateLabel updates the named label.
func (c *Client) UpdateLabel(ctx context.Context, slug, name string, label Label) error {
	u := fmt.Sprintf("%s/repos/%s/labels/%s", c.baseURL, slug, url.PathEscape(name))
	return c.Patch(ctx, u, label, nil)
}

// DeleteLabel removes the named label. Deleting a label that does not exist
// is a no-op: the desired end state already holds.
func (c *Client) DeleteLabel(ctx context.Context, slug, name string) error {
	u := fmt.Sprintf("%s/repos/%s/labels/%s", c.baseURL, slug, url.PathEscape(name))
	err := c.Delete(ctx, u)
	if errors.Is(err, errors.ErrCodeNotFound) {
		log.FromContext(ctx).Debug("label already absent", "repo", slug, "label", name)
		return nil
	}
	return err
}
