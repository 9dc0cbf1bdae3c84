package changelog

import (
	"regexp"
	"sort"
)

// Commits matching these are infrastructure noise, dropped before
// deduplication.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^Update dependency constraints for `),
	regexp.MustCompile(`^Update translations`),
}

// Changelog aggregates the commits of a reconstructed library tree.
type Changelog struct {
	root *Library

	// IncludeOtherChanges keeps unclassified commits in grouped output
	// under "Other changes". Off by default since unclassified commits are
	// mostly noise.
	IncludeOtherChanges bool
}

// New creates a Changelog over a reconstructed tree.
func New(root *Library) *Changelog {
	return &Changelog{root: root}
}

// Root returns the tree the changelog renders.
func (c *Changelog) Root() *Library { return c.root }

// Items collects every library's commits, drops ignored subjects,
// deduplicates cherry-picked changes, and sorts newest first.
func (c *Changelog) Items() ([]*Item, error) {
	seen := map[string]bool{}
	var items []*Item
	for _, lib := range c.root.All() {
		commits, err := lib.Commits()
		if err != nil {
			return nil, err
		}
		for _, item := range commits {
			if ignored(item.RawMessage()) {
				continue
			}
			key := item.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date().After(items[j].Date())
	})
	return items, nil
}

// ByCategory groups items into rendering sections. Merge commits never
// render; Other renders only when IncludeOtherChanges is set.
func (c *Changelog) ByCategory(items []*Item) map[Category][]*Item {
	grouped := map[Category][]*Item{}
	for _, item := range items {
		category := item.Category()
		if category == CategoryMerge {
			continue
		}
		if category == CategoryOther && !c.IncludeOtherChanges {
			continue
		}
		grouped[category] = append(grouped[category], item)
	}
	return grouped
}

func ignored(subject string) bool {
	for _, pattern := range ignorePatterns {
		if pattern.MatchString(subject) {
			return true
		}
	}
	return false
}
