// Package version implements the four-part collection version number
// major.minor.patch.enumerator used throughout the engine.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mongodrift/mongodrift/internal/domain"
)

// maxComponent bounds each version component.
const maxComponent = 1<<31 - 1

// Number is an immutable four-part version. The zero value is the sentinel
// 0.0.0.0 meaning "never applied".
type Number struct {
	major, minor, patch, enumerator int
}

// Zero is the never-applied sentinel 0.0.0.0.
var Zero = Number{}

// Parse converts a version string of the form major.minor.patch.enumerator
// into a Number. Each field is a plain decimal integer: no signs, no
// whitespace, no missing or extra fields. Leading zeros are accepted.
func Parse(s string) (Number, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Number{}, fmt.Errorf("%w: %q must have exactly four components", domain.ErrBadVersionString, s)
	}
	var fields [4]int
	for i, part := range parts {
		n, err := parseComponent(part)
		if err != nil {
			return Number{}, fmt.Errorf("%w: %q: %v", domain.ErrBadVersionString, s, err)
		}
		fields[i] = n
	}
	return Number{major: fields[0], minor: fields[1], patch: fields[2], enumerator: fields[3]}, nil
}

// MustParse is Parse for literals in tests and defaults.
func MustParse(s string) Number {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func parseComponent(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("component %q is not a decimal integer", s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n > maxComponent {
		return 0, fmt.Errorf("component %q out of range", s)
	}
	return int(n), nil
}

// New builds a Number from its four components.
func New(major, minor, patch, enumerator int) Number {
	return Number{major: major, minor: minor, patch: patch, enumerator: enumerator}
}

// String formats the version as major.minor.patch.enumerator.
func (n Number) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", n.major, n.minor, n.patch, n.enumerator)
}

// SchemaVersion returns the three-part major.minor.patch form used to derive
// dictionary file names.
func (n Number) SchemaVersion() string {
	return fmt.Sprintf("%d.%d.%d", n.major, n.minor, n.patch)
}

// EnumeratorVersion returns the fourth component, which selects an
// enumerator set.
func (n Number) EnumeratorVersion() int { return n.enumerator }

// Major returns the first component.
func (n Number) Major() int { return n.major }

// Minor returns the second component.
func (n Number) Minor() int { return n.minor }

// Patch returns the third component.
func (n Number) Patch() int { return n.patch }

// IsZero reports whether the version is the 0.0.0.0 sentinel.
func (n Number) IsZero() bool { return n == Number{} }

// Compare orders versions tuple-lexicographically. It returns -1 when n is
// older than other, 0 when equal, and 1 when newer.
func (n Number) Compare(other Number) int {
	pairs := [4][2]int{
		{n.major, other.major},
		{n.minor, other.minor},
		{n.patch, other.patch},
		{n.enumerator, other.enumerator},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Less reports whether n orders before other.
func (n Number) Less(other Number) bool { return n.Compare(other) < 0 }

// Equal reports whether the two versions are identical.
func (n Number) Equal(other Number) bool { return n == other }
