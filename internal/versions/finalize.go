// Package versions provides semantic version handling for contract promotion
// and build information for the contract-promoter binary.
package versions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrVersionParse is returned when a version string is not a valid semantic version
var ErrVersionParse = errors.New("version is not a valid semantic version")

// Parse parses a version string strictly as a semantic version.
func Parse(version string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(strings.TrimSpace(version))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrVersionParse, version, err)
	}
	return v, nil
}

// IsDraft reports whether version carries a pre-release component.
// Unparseable versions are never drafts.
func IsDraft(version string) bool {
	v, err := Parse(version)
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}

// Finalize strips the pre-release component of version and keeps build
// metadata verbatim, so "1.0.2-beta1+rev02" becomes "1.0.2+rev02".
//
// The result is rebuilt from the parsed components instead of relying on the
// library's String method, which is not guaranteed to preserve build metadata.
func Finalize(version string) (string, error) {
	v, err := Parse(version)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if build := v.Metadata(); build != "" {
		b.WriteString("+")
		b.WriteString(build)
	}
	return b.String(), nil
}
