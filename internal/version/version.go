package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Triple is a parsed major.minor.patch release number.
type Triple struct {
	Major int
	Minor int
	Patch int
}

// MesonThreshold is the first libxml2 release built with meson.
var MesonThreshold = Triple{Major: 2, Minor: 13, Patch: 0}

// Parse parses a dotted version string such as "2.9.14".
func Parse(s string) (Triple, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Triple{}, fmt.Errorf("invalid version %q: want major.minor.patch", s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Triple{}, fmt.Errorf("invalid version %q: component %q is not a non-negative integer", s, p)
		}
		nums[i] = n
	}

	return Triple{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) Triple {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the dotted form.
func (v Triple) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Series returns "major.minor", the directory level used by release mirrors.
func (v Triple) Series() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0 or 1.
func (v Triple) Compare(o Triple) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// AtLeast reports whether v >= o.
func (v Triple) AtLeast(o Triple) bool {
	return v.Compare(o) >= 0
}

// UsesMeson reports whether this release is built with meson rather than autotools.
func (v Triple) UsesMeson() bool {
	return v.AtLeast(MesonThreshold)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
