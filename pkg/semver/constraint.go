package semver

import (
	"regexp"
	"strconv"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// openEnd stands in for "any value" in open-ended constraint ceilings.
const openEnd = 99999

// SelfVersion is the constraint token declaring that a dependency always
// matches the parent recipe's own version exactly.
const SelfVersion = "self.version"

var (
	caretPattern = regexp.MustCompile(`^\^(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)
	tildePattern = regexp.MustCompile(`^~(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)
)

// Constraint is a composer dependency constraint resolved to an inclusive
// [min, max] version range. For self-referential constraints both bounds
// equal the parent's version.
type Constraint struct {
	raw         string
	min         Version
	max         Version
	selfVersion bool
}

// ParseConstraint computes the version range for a constraint string.
// The parent version is only required for the self.version token; passing
// nil for other grammars is fine. Unsupported grammars fail with
// INVALID_CONSTRAINT.
func ParseConstraint(raw string, parent *Version) (*Constraint, error) {
	if raw == SelfVersion {
		if parent == nil {
			return nil, errors.New(errors.ErrCodeInvalidConstraint,
				"constraint %q requires a parent version", raw)
		}
		return &Constraint{raw: raw, min: *parent, max: *parent, selfVersion: true}, nil
	}

	if exact, ok := TryParse(raw); ok {
		return &Constraint{raw: raw, min: exact, max: exact}, nil
	}

	if m := caretPattern.FindStringSubmatch(raw); m != nil {
		min := rangeFloor(m)
		// Caret allows any minor/patch bump within the major.
		max := Version{Major: min.Major, Minor: openEnd, Patch: openEnd, Stability: Stable}
		return &Constraint{raw: raw, min: min, max: max}, nil
	}

	if m := tildePattern.FindStringSubmatch(raw); m != nil {
		min := rangeFloor(m)
		max := tildeCeiling(m, min)
		return &Constraint{raw: raw, min: min, max: max}, nil
	}

	return nil, errors.New(errors.ErrCodeInvalidConstraint,
		"constraint %q is not semver-compatible", raw)
}

// rangeFloor builds the range minimum from matched components, defaulting
// missing parts to zero. The floor admits pre-releases of the named triple.
func rangeFloor(m []string) Version {
	return Version{
		Major:            atoiOrZero(m[1]),
		Minor:            atoiOrZero(m[2]),
		Patch:            atoiOrZero(m[3]),
		Stability:        Alpha,
		StabilityVersion: 1,
	}
}

// tildeCeiling depends on how specific the constraint is: a full triple pins
// the minor line, major.minor pins the major line, a bare major is unbounded.
func tildeCeiling(m []string, min Version) Version {
	switch {
	case m[3] != "":
		return Version{Major: min.Major, Minor: min.Minor, Patch: openEnd, Stability: Stable}
	case m[2] != "":
		return Version{Major: min.Major, Minor: openEnd, Patch: openEnd, Stability: Stable}
	default:
		return Version{Major: openEnd, Minor: openEnd, Patch: openEnd, Stability: Stable}
	}
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// String returns the original constraint string.
func (c *Constraint) String() string { return c.raw }

// Min returns the inclusive lower bound.
func (c *Constraint) Min() Version { return c.min }

// Max returns the inclusive upper bound.
func (c *Constraint) Max() Version { return c.max }

// IsSelfVersion reports whether this is a self.version constraint.
func (c *Constraint) IsSelfVersion() bool { return c.selfVersion }

// Matches reports whether v falls within [min, max].
func (c *Constraint) Matches(v Version) bool {
	return c.min.Compare(v) <= 0 && v.Compare(c.max) <= 0
}

// FilterVersions returns the subset of tags within the constraint range,
// preserving input order.
func (c *Constraint) FilterVersions(tags []Version) []Version {
	var out []Version
	for _, t := range tags {
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
