package release

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pasturelabs/roundup/pkg/composer"
	"github.com/pasturelabs/roundup/pkg/githubapi"
	"github.com/pasturelabs/roundup/pkg/registry"
)

// Publisher executes an accepted plan: children before parents, each library
// gets its constraints rewritten, a tag, and optionally a pushed branch, a
// GitHub release, and a registry availability check. Nodes whose tag already
// exists are skipped, so a failed run can be resumed by running publish
// again.
type Publisher struct {
	// GitHub, when set, upserts a release per tagged library that declares
	// a github-slug in its config.
	GitHub *githubapi.Client

	// Registry, when set, blocks after each tag push until the registry has
	// indexed the version.
	Registry *registry.Client

	// Push controls whether tags (and registry waits) reach the remote.
	// Without it the publish is a local dry run ending at the tag objects.
	Push bool

	// WaitInterval and WaitTimeout bound the registry polling budget.
	WaitInterval time.Duration
	WaitTimeout  time.Duration
}

const (
	defaultWaitInterval = 20 * time.Second
	defaultWaitTimeout  = 10 * time.Minute
)

// Publish runs the plan tree bottom-up.
func (p *Publisher) Publish(ctx context.Context, plan *LibraryRelease) error {
	return plan.WalkUp(func(node *LibraryRelease) error {
		return p.publishNode(ctx, node)
	})
}

func (p *Publisher) publishNode(ctx context.Context, node *LibraryRelease) error {
	logger := log.FromContext(ctx).With("library", node.Name(), "version", node.Version)

	isNew, err := node.IsNewRelease()
	if err != nil {
		return err
	}
	if !isNew {
		logger.Info("tag exists, skipping")
		return nil
	}

	if err := p.rewriteConstraints(ctx, node); err != nil {
		return err
	}

	logger.Info("tagging")
	if err := node.Library().AddTag(ctx, node.Version, fmt.Sprintf("Release %s", node.Version)); err != nil {
		return err
	}
	if !p.Push {
		return nil
	}

	repo, err := node.Library().Repo()
	if err != nil {
		return err
	}
	if err := repo.PushTag(ctx, "origin", node.Version.Tag()); err != nil {
		return err
	}
	if err := p.createGithubRelease(ctx, node); err != nil {
		return err
	}
	return p.waitForRegistry(ctx, node)
}

// rewriteConstraints pins the manifest's require entries for every direct
// plan child to its released version, then commits the manifest when it
// changed. Children were published first, so each referenced tag exists.
func (p *Publisher) rewriteConstraints(ctx context.Context, node *LibraryRelease) error {
	logger := log.FromContext(ctx)
	children := node.Items()
	if len(children) == 0 {
		return nil
	}
	manifest, err := node.Library().Manifest()
	if err != nil {
		return err
	}
	cfg, err := node.Library().Config()
	if err != nil {
		return err
	}

	changed := false
	for _, child := range children {
		constraint := child.Version.Constraint(cfg.ConstraintType())
		if manifest.Require[child.Name()] == constraint {
			continue
		}
		logger.Info("pinning dependency", "library", node.Name(), "dependency", child.Name(), "constraint", constraint)
		manifest.SetRequire(child.Name(), constraint)
		changed = true
	}
	if !changed {
		return nil
	}
	if err := manifest.Write(filepath.Join(node.Library().Dir(), composer.Filename)); err != nil {
		return err
	}
	repo, err := node.Library().Repo()
	if err != nil {
		return err
	}
	_, err = repo.CommitAll(fmt.Sprintf("Update dependency constraints for %s release", node.Version))
	return err
}

func (p *Publisher) createGithubRelease(ctx context.Context, node *LibraryRelease) error {
	if p.GitHub == nil {
		return nil
	}
	cfg, err := node.Library().Config()
	if err != nil {
		return err
	}
	if cfg.GithubSlug == "" {
		return nil
	}

	var previousTag string
	if node.PriorVersion != nil {
		previousTag = node.PriorVersion.Tag()
	}
	body, err := p.GitHub.GenerateReleaseNotes(ctx, cfg.GithubSlug, node.Version.Tag(), previousTag)
	if err != nil {
		// Generated notes are a nicety; the release itself still goes out.
		log.FromContext(ctx).Warn("could not generate release notes", "repo", cfg.GithubSlug, "err", err)
	}
	_, err = p.GitHub.UpsertRelease(ctx, cfg.GithubSlug, githubapi.Release{
		TagName:    node.Version.Tag(),
		Name:       node.Version.String(),
		Body:       body,
		Prerelease: !node.Version.IsStable(),
	})
	return err
}

func (p *Publisher) waitForRegistry(ctx context.Context, node *LibraryRelease) error {
	if p.Registry == nil {
		return nil
	}
	interval, timeout := p.WaitInterval, p.WaitTimeout
	if interval <= 0 {
		interval = defaultWaitInterval
	}
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	return p.Registry.WaitForVersion(ctx, node.Name(), node.Version, interval, timeout)
}
