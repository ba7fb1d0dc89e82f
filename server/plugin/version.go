package plugin

import (
	"strings"

	"golang.org/x/mod/semver"
)

// compareVersions compares two plugin versions as semantic versions. The "v"
// prefix is optional. Versions that are not valid semantic versions compare
// equal to anything.
func compareVersions(a, b string) int {
	a, b = canonicalVersion(a), canonicalVersion(b)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return 0
	}
	return semver.Compare(a, b)
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
