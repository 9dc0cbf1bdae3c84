// Package semver implements the version and constraint grammar used by
// composer manifests in the release pipeline.
//
// Versions carry a stability track (stable, rc, beta, alpha) with an optional
// numeric sub-version. Ordering is lexicographic over
// (major, minor, patch, stability rank, stability version), where a less
// stable track always sorts below a more stable one at the same triple:
//
//	4.0.0-alpha1 < 4.0.0-beta1 < 4.0.0-rc1 < 4.0.0-rc2 < 4.0.0
//
// Version values are immutable; transforms like [Version.WithPatch] return
// modified copies.
package semver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Stability identifies a release track.
type Stability int

// Stability tracks, least stable first. The numeric order doubles as the
// comparison rank: a higher value sorts as a higher version.
const (
	Alpha Stability = iota
	Beta
	RC
	Stable
)

// String returns the track name as it appears in version strings.
// Stable has no textual representation.
func (s Stability) String() string {
	switch s {
	case Alpha:
		return "alpha"
	case Beta:
		return "beta"
	case RC:
		return "rc"
	default:
		return ""
	}
}

// ParseStability converts a track name to a Stability.
func ParseStability(name string) (Stability, bool) {
	switch strings.ToLower(name) {
	case "alpha":
		return Alpha, true
	case "beta":
		return Beta, true
	case "rc":
		return RC, true
	case "stable", "":
		return Stable, true
	}
	return Stable, false
}

// Version is an immutable semantic version with a stability track.
// The zero value is 0.0.0-alpha.
type Version struct {
	Major            int
	Minor            int
	Patch            int
	Stability        Stability
	StabilityVersion int // 0 when absent (e.g. "4.0.0-rc"); >=1 otherwise

	original string
}

var versionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-(rc|beta|alpha)(\d+)?)?$`)

// Parse converts a version string matching (v)?MAJOR.MINOR.PATCH(-track(N))?
// into a Version. A failed match is a PARSE_ERROR.
func Parse(value string) (Version, error) {
	v, ok := TryParse(value)
	if !ok {
		return Version{}, errors.New(errors.ErrCodeParse, "malformed version %q", value)
	}
	return v, nil
}

// TryParse is the non-throwing probe used when filtering untrusted tag lists,
// where a non-match is an expected outcome rather than a failure.
func TryParse(value string) (Version, bool) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Version{}, false
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	v := Version{
		Major:     major,
		Minor:     minor,
		Patch:     patch,
		Stability: Stable,
		original:  value,
	}
	if m[4] != "" {
		v.Stability, _ = ParseStability(m[4])
		if m[5] != "" {
			v.StabilityVersion, _ = strconv.Atoi(m[5])
		}
	}
	return v, true
}

// MustParse parses value or panics. Intended for fixed inputs in tests.
func MustParse(value string) Version {
	v, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return v
}

// New constructs a stable version.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch, Stability: Stable}
}

// String returns the canonical form without a "v" prefix, e.g. "4.1.0-rc2".
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Stability != Stable {
		b.WriteByte('-')
		b.WriteString(v.Stability.String())
		if v.StabilityVersion > 0 {
			b.WriteString(strconv.Itoa(v.StabilityVersion))
		}
	}
	return b.String()
}

// Original returns the string this version was parsed from, falling back to
// the canonical form for constructed versions. Useful when re-tagging with
// the exact tag name found in the repository.
func (v Version) Original() string {
	if v.original != "" {
		return v.original
	}
	return v.String()
}

// Tag returns the git tag name for this version. Tags are canonical form
// without a "v" prefix, matching the composer ecosystem convention.
func (v Version) Tag() string { return v.String() }

// IsStable reports whether this version is on the stable track.
func (v Version) IsStable() bool { return v.Stability == Stable }

// Compare returns a negative, zero, or positive value ordering v against o.
// The order key is (major, minor, patch, stability rank, stability version).
func (v Version) Compare(o Version) int {
	if d := v.Major - o.Major; d != 0 {
		return d
	}
	if d := v.Minor - o.Minor; d != 0 {
		return d
	}
	if d := v.Patch - o.Patch; d != 0 {
		return d
	}
	if d := int(v.Stability) - int(o.Stability); d != 0 {
		return d
	}
	return v.StabilityVersion - o.StabilityVersion
}

// LessThan reports v < o.
func (v Version) LessThan(o Version) bool { return v.Compare(o) < 0 }

// Equals reports whether v and o denote the same version, ignoring the
// original source string.
func (v Version) Equals(o Version) bool { return v.Compare(o) == 0 }

// WithPatch returns a copy with a different patch component.
func (v Version) WithPatch(patch int) Version {
	v.Patch = patch
	v.original = ""
	return v
}

// WithStability returns a copy on a different stability track.
func (v Version) WithStability(stability Stability, stabilityVersion int) Version {
	v.Stability = stability
	v.StabilityVersion = stabilityVersion
	if stability == Stable {
		v.StabilityVersion = 0
	}
	v.original = ""
	return v
}

// PriorVersion infers the version released immediately before this one.
// Pre-releases above the first step back within the same track; stable patch
// releases step the patch down. The result is indeterminate (ok=false) when
// the prior minor or major boundary cannot be known without the tag list.
func (v Version) PriorVersion() (Version, bool) {
	if v.StabilityVersion > 1 {
		prior := v
		prior.StabilityVersion--
		prior.original = ""
		return prior, true
	}
	if v.IsStable() && v.Patch > 0 {
		return v.WithPatch(v.Patch - 1), true
	}
	return Version{}, false
}

// PriorVersionFromTags resolves the prior version against a concrete tag set:
// the inferred prior version wins if it was actually tagged, otherwise the
// highest stable tag strictly below v is used.
func (v Version) PriorVersionFromTags(tags []Version) (Version, bool) {
	if inferred, ok := v.PriorVersion(); ok {
		for _, t := range tags {
			if t.Equals(inferred) {
				return t, true
			}
		}
	}

	var best Version
	found := false
	for _, t := range tags {
		if !t.IsStable() || !t.LessThan(v) {
			continue
		}
		if !found || best.LessThan(t) {
			best = t
			found = true
		}
	}
	return best, found
}

// NextVersion computes the next release on the requested stability track.
// A stable receiver opens a new minor line; a pre-release receiver stays on
// its triple unless the candidate would not move strictly forward, in which
// case the patch is bumped. The result always compares greater than v.
func (v Version) NextVersion(stability Stability, stabilityVersion int) Version {
	next := v.WithStability(stability, stabilityVersion)
	if v.IsStable() {
		next.Minor++
		next.Patch = 0
		return next
	}
	if next.Compare(v) <= 0 {
		next.Patch = v.Patch + 1
	}
	return next
}

// ConstraintType selects the rendering of a version as a manifest constraint.
type ConstraintType int

const (
	ConstraintExact ConstraintType = iota
	ConstraintTilde
	ConstraintCaret
)

// Constraint renders this version as a composer constraint string of the
// given type. Non-stable versions carry an explicit @stability flag so
// composer resolves pre-release tags.
func (v Version) Constraint(t ConstraintType) string {
	var prefix string
	switch t {
	case ConstraintTilde:
		prefix = "~"
	case ConstraintCaret:
		prefix = "^"
	}
	s := prefix + v.String()
	if !v.IsStable() {
		s += "@" + v.Stability.String()
	}
	return s
}

// ParseMany filters raw tag names down to the parseable versions,
// silently skipping anything outside the version grammar.
func ParseMany(raw []string) []Version {
	var out []Version
	for _, s := range raw {
		if v, ok := TryParse(s); ok {
			out = append(out, v)
		}
	}
	return out
}

// Sort orders versions ascending in place.
func Sort(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].LessThan(versions[j])
	})
}

// SortDescending orders versions highest first in place.
func SortDescending(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[j].LessThan(versions[i])
	})
}

// Max returns the highest version in the slice.
func Max(versions []Version) (Version, bool) {
	if len(versions) == 0 {
		return Version{}, false
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if best.LessThan(v) {
			best = v
		}
	}
	return best, true
}

// FilterStable returns only the stable-track versions.
func FilterStable(versions []Version) []Version {
	var out []Version
	for _, v := range versions {
		if v.IsStable() {
			out = append(out, v)
		}
	}
	return out
}
