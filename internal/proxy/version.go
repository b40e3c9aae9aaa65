package proxy

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is returned for a host version string that is not a
// dotted numeric release ("1.16.5", "v1.20").
var ErrInvalidVersion = errors.New("proxy: invalid host version")

// Version is a canonical semantic version ("v1.16.5").
type Version string

// ParseVersion normalises a host version string. Missing minor/patch
// components are filled with zero.
func ParseVersion(s string) (Version, error) {
	v := strings.TrimSpace(s)
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return Version(semver.Canonical(v)), nil
}

// MustParseVersion is ParseVersion for constants; it panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	return semver.Compare(string(v), string(o))
}

// String returns the version without the leading "v".
func (v Version) String() string {
	return strings.TrimPrefix(string(v), "v")
}

// Predicate selects the host versions a provider supports.
type Predicate func(Version) bool

// AtLeast matches v >= min.
func AtLeast(min string) Predicate {
	lo := MustParseVersion(min)
	return func(v Version) bool { return v.Compare(lo) >= 0 }
}

// Below matches v < max.
func Below(max string) Predicate {
	hi := MustParseVersion(max)
	return func(v Version) bool { return v.Compare(hi) < 0 }
}

// Between matches min <= v < max.
func Between(min, max string) Predicate {
	lo, hi := AtLeast(min), Below(max)
	return func(v Version) bool { return lo(v) && hi(v) }
}

// Any matches every version.
func Any() Predicate {
	return func(Version) bool { return true }
}
