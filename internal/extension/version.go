package extension

import (
	"slices"

	"golang.org/x/mod/semver"

	"github.com/roach88/reqlog/internal/ir"
)

// CheckVersion validates the version of an incoming extension action.
//
// The version must be one the module supports and must not be lower than
// the version already recorded in the sub-state. current is empty before
// the extension exists. The returned version is the one to record.
func CheckVersion(supported []string, current, incoming string) (string, error) {
	if !slices.Contains(supported, incoming) {
		return "", ir.Reject(ir.ReasonInvalidParameters, "version %s not supported (supported: %v)", incoming, supported)
	}
	if current == "" {
		return incoming, nil
	}
	cmp := semver.Compare(canonicalSemver(incoming), canonicalSemver(current))
	if cmp < 0 {
		return "", ir.Reject(ir.ReasonInvalidParameters, "version %s is lower than current version %s", incoming, current)
	}
	if cmp > 0 {
		return incoming, nil
	}
	return current, nil
}

// canonicalSemver adds the "v" prefix golang.org/x/mod/semver expects.
func canonicalSemver(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v
	}
	return "v" + v
}

// ValidVersion reports whether v is a semantic version, with or without the
// leading "v".
func ValidVersion(v string) bool {
	return semver.IsValid(canonicalSemver(v))
}
