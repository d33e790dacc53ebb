package dialect

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var ErrInvalidVersion = errors.New("invalid server version")

// Leading numeric part of strings such as "8.0.36", "5.7.44-log",
// "10.11.6-MariaDB-1:10.11.6+maria~ubu2204", "3.4 USE_GEOS=1" or "v1.1.3".
var versionPattern = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ParseServerVersion extracts a semantic version from a server version
// banner. Vendor suffixes are discarded.
func ParseServerVersion(banner string) (*semver.Version, error) {
	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, banner)
	}

	parts := []string{m[1], "0", "0"}
	if m[2] != "" {
		parts[1] = m[2]
	}
	if m[3] != "" {
		parts[2] = m[3]
	}

	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", parts[0], parts[1], parts[2]))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, banner, err)
	}
	return v, nil
}

// WithServerVersion returns a copy of r with version-gated spellings resolved
// for the given server banner. Below SphericalSince the legacy spherical
// function is used, or none at all when the dialect has no legacy spelling.
func (r Rule) WithServerVersion(banner string) (Rule, error) {
	v, err := ParseServerVersion(banner)
	if err != nil {
		return Rule{}, err
	}

	out := r
	out.ServerVersion = v.String()

	if r.SphericalSince == "" {
		return out, nil
	}

	since, err := semver.NewVersion(r.SphericalSince)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %s spherical threshold %q: %v", ErrInvalidVersion, r.Name, r.SphericalSince, err)
	}

	if v.LessThan(since) {
		out.SphericalDistanceFn = r.LegacySphericalDistanceFn
	}

	return out, nil
}
