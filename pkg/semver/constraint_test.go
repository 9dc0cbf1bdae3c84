package semver

import (
	"testing"

	"github.com/pasturelabs/roundup/pkg/errors"
)

func TestParseConstraintBounds(t *testing.T) {
	tests := []struct {
		raw     string
		wantMin string
		wantMax string
	}{
		{"^4.1.1", "4.1.1-alpha1", "4.99999.99999"},
		{"^4.1", "4.1.0-alpha1", "4.99999.99999"},
		{"^4", "4.0.0-alpha1", "4.99999.99999"},
		{"~4.1.1", "4.1.1-alpha1", "4.1.99999"},
		{"~4.1", "4.1.0-alpha1", "4.99999.99999"},
		{"~4", "4.0.0-alpha1", "99999.99999.99999"},
		{"4.1.1", "4.1.1", "4.1.1"},
		{"4.1.1-rc1", "4.1.1-rc1", "4.1.1-rc1"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := ParseConstraint(tt.raw, nil)
			if err != nil {
				t.Fatalf("ParseConstraint(%q): %v", tt.raw, err)
			}
			if got := c.Min().String(); got != tt.wantMin {
				t.Errorf("min = %s, want %s", got, tt.wantMin)
			}
			if got := c.Max().String(); got != tt.wantMax {
				t.Errorf("max = %s, want %s", got, tt.wantMax)
			}
			if c.IsSelfVersion() {
				t.Errorf("IsSelfVersion() = true for %q", tt.raw)
			}
		})
	}
}

func TestParseConstraintSelfVersion(t *testing.T) {
	parent := MustParse("4.5.0")
	c, err := ParseConstraint(SelfVersion, &parent)
	if err != nil {
		t.Fatalf("ParseConstraint(self.version): %v", err)
	}
	if !c.IsSelfVersion() {
		t.Error("IsSelfVersion() = false")
	}
	if !c.Min().Equals(parent) || !c.Max().Equals(parent) {
		t.Errorf("bounds = [%s, %s], want both %s", c.Min(), c.Max(), parent)
	}

	// Without a parent version the constraint is unresolvable.
	if _, err := ParseConstraint(SelfVersion, nil); !errors.Is(err, errors.ErrCodeInvalidConstraint) {
		t.Errorf("ParseConstraint(self.version, nil) err = %v, want INVALID_CONSTRAINT", err)
	}
}

func TestParseConstraintRejects(t *testing.T) {
	for _, raw := range []string{"", ">=4.0", "4.*", "dev-master", "^4.x", "~", "^"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := ParseConstraint(raw, nil); !errors.Is(err, errors.ErrCodeInvalidConstraint) {
				t.Errorf("ParseConstraint(%q) err = %v, want INVALID_CONSTRAINT", raw, err)
			}
		})
	}
}

func TestFilterVersions(t *testing.T) {
	tags := ParseMany([]string{"4.1.0", "4.1.1", "4.1.1-alpha1", "4.1.2", "4.2.0", "5.0.0"})

	tests := []struct {
		raw  string
		want []string
	}{
		{"^4.1.1", []string{"4.1.1", "4.1.1-alpha1", "4.1.2", "4.2.0"}},
		{"~4.1.1", []string{"4.1.1", "4.1.1-alpha1", "4.1.2"}},
		{"^5", []string{"5.0.0"}},
		{"~6", nil},
		{"4.1.2", []string{"4.1.2"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := ParseConstraint(tt.raw, nil)
			if err != nil {
				t.Fatalf("ParseConstraint(%q): %v", tt.raw, err)
			}
			got := c.FilterVersions(tags)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterVersions(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i, v := range got {
				if v.String() != tt.want[i] {
					t.Errorf("match[%d] = %s, want %s", i, v, tt.want[i])
				}
			}
		})
	}
}
