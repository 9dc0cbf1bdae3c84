// Package changelog reconstructs per-library commit history between two
// released versions, classifies commits by convention, and renders grouped
// markdown that can be regenerated in place.
package changelog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"

	"github.com/pasturelabs/roundup/pkg/gitx"
)

// Category is a changelog section. Categories render in the order of
// [Categories].
type Category string

const (
	CategorySecurity      Category = "Security"
	CategoryAPI           Category = "API Changes"
	CategoryFeatures      Category = "Features and Enhancements"
	CategoryBugfixes      Category = "Bugfixes"
	CategoryDocumentation Category = "Documentation"
	CategoryMerge         Category = "Merge"
	CategoryDependencies  Category = "Dependencies"
	CategoryMaintenance   Category = "Maintenance"
	CategoryOther         Category = "Other changes"
)

// Categories lists every category in rendering priority order. Merge and
// Other entries are excluded from grouped output by default.
var Categories = []Category{
	CategorySecurity,
	CategoryAPI,
	CategoryFeatures,
	CategoryBugfixes,
	CategoryDocumentation,
	CategoryDependencies,
	CategoryMaintenance,
	CategoryOther,
}

// Classification rules, tested against the commit subject in order. The
// first match wins, so a security identifier beats any other prefix.
var categoryRules = []struct {
	category Category
	pattern  *regexp.Regexp
}{
	{CategorySecurity, regexp.MustCompile(`(?i)^\[?(SS-2\d{3}-\d{3}|CVE-\d{4}-\d+)\]?\s*:?`)},
	{CategoryAPI, regexp.MustCompile(`^API\b\s*:?`)},
	{CategoryFeatures, regexp.MustCompile(`^(NEW|ENH|ENHANCEMENT|FEATURE)\b\s*:?`)},
	{CategoryBugfixes, regexp.MustCompile(`^(FIX|BUG|BUGFIX)\b\s*:?`)},
	{CategoryDocumentation, regexp.MustCompile(`^DOCS?\b\s*:?`)},
	{CategoryMerge, regexp.MustCompile(`^Merge\b`)},
	{CategoryDependencies, regexp.MustCompile(`^DEP\b\s*:?`)},
	{CategoryMaintenance, regexp.MustCompile(`^(MNT|MAINT)\b\s*:?`)},
}

var (
	securityIDPattern = regexp.MustCompile(`(?i)(SS-2\d{3}-\d{3}|CVE-\d{4}-\d+)`)
	botAuthorPattern  = regexp.MustCompile(`(?i)\[bot\]$|^(dependabot|renovate|github-actions)\b`)
	emailPattern      = regexp.MustCompile(`<?\b[\w.+-]+@[\w-]+\.[\w.-]+\b>?`)
	fromLinePattern   = regexp.MustCompile(`(?m)^From:.*$`)
)

// ccMachine parses conventional-commit subjects as a classification
// fallback for repositories that never adopted the prefix-tag convention.
var ccMachine = parser.NewMachine(conventionalcommits.WithTypes(conventionalcommits.TypesConventional))

// Item is one commit destined for the changelog.
type Item struct {
	library string
	commit  gitx.Commit
}

// NewItem wraps a commit from the named library.
func NewItem(library string, commit gitx.Commit) *Item {
	return &Item{library: library, commit: commit}
}

// Library returns the composer name of the library the commit belongs to.
func (i *Item) Library() string { return i.library }

// Commit returns the underlying commit.
func (i *Item) Commit() gitx.Commit { return i.commit }

// Date returns the author date.
func (i *Item) Date() time.Time { return i.commit.AuthorDate }

// Author returns the commit author's name.
func (i *Item) Author() string { return i.commit.AuthorName }

// RawMessage returns the unmodified commit subject.
func (i *Item) RawMessage() string { return i.commit.Subject }

// DedupKey identifies a logical change independently of its commit hash.
// The same change cherry-picked across branches keeps author, date, and
// message, so those three fields collapse it to one entry.
func (i *Item) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s", i.commit.AuthorName, i.commit.AuthorDate.UTC().Format(time.RFC3339), i.commit.Subject)
}

// SecurityID returns the CVE or SS advisory identifier mentioned anywhere in
// the subject, or "".
func (i *Item) SecurityID() string {
	return strings.ToUpper(securityIDPattern.FindString(i.commit.Subject))
}

// Category classifies the commit. Bot authors are dependency bumps
// regardless of subject; then prefix rules win in priority order; any
// advisory identifier forces Security; a parseable conventional-commit
// subject maps through its type; everything else is Other.
func (i *Item) Category() Category {
	if botAuthorPattern.MatchString(i.commit.AuthorName) {
		return CategoryDependencies
	}
	subject := strings.TrimSpace(i.commit.Subject)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(subject) {
			return rule.category
		}
	}
	if i.SecurityID() != "" {
		return CategorySecurity
	}
	if category, ok := conventionalCategory(subject); ok {
		return category
	}
	return CategoryOther
}

func conventionalCategory(subject string) (Category, bool) {
	msg, err := ccMachine.Parse([]byte(subject))
	if err != nil || !msg.Ok() {
		return "", false
	}
	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok {
		return "", false
	}
	switch cc.Type {
	case "feat", "perf":
		return CategoryFeatures, true
	case "fix":
		return CategoryBugfixes, true
	case "docs":
		return CategoryDocumentation, true
	case "build", "chore", "ci", "refactor", "style", "test":
		if cc.Scope != nil && strings.Contains(*cc.Scope, "dep") {
			return CategoryDependencies, true
		}
		return CategoryMaintenance, true
	}
	return "", false
}

// ShortMessage returns the subject cleaned for rendering: category prefixes
// stripped (repeatedly, they stack), email addresses removed, and From:
// attribution lines dropped.
func (i *Item) ShortMessage() string {
	message := strings.TrimSpace(i.commit.Subject)
	for {
		stripped := message
		for _, rule := range categoryRules {
			if rule.category == CategoryMerge {
				continue
			}
			stripped = strings.TrimSpace(rule.pattern.ReplaceAllString(stripped, ""))
		}
		if stripped == message {
			break
		}
		message = stripped
	}
	message = emailPattern.ReplaceAllString(message, "")
	message = fromLinePattern.ReplaceAllString(message, "")
	return strings.TrimSpace(message)
}
