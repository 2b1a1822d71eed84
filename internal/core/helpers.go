package core

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// LabelFor turns a dotted version into an attribute-safe label.
func LabelFor(version string) string {
	return strings.ReplaceAll(version, ".", "_")
}

// Lookup returns the descriptor with the given label.
func Lookup(t Table, label string) (*Descriptor, error) {
	for _, d := range t.ListVersions() {
		if d.Label == label {
			return &d, nil
		}
	}
	return nil, &NotFoundError{Package: t.Package(), Label: label}
}

// Releases returns only the digest-pinned upstream releases, in table order.
func Releases(t Table) []Descriptor {
	var out []Descriptor
	for _, d := range t.ListVersions() {
		if d.IsRelease() {
			out = append(out, d)
		}
	}
	return out
}

// LatestRelease returns the release with the highest semantic version.
// Returns nil if the table has no releases.
func LatestRelease(t Table) (*Descriptor, error) {
	var (
		latest    *Descriptor
		latestVer *semver.Version
	)
	for _, d := range Releases(t) {
		v, err := semver.NewVersion(d.Args.Version)
		if err != nil {
			return nil, fmt.Errorf("parsing version of %s: %w", d.Label, err)
		}
		if latestVer == nil || v.GreaterThan(latestVer) {
			latest = &d
			latestVer = v
		}
	}
	return latest, nil
}

// Validate checks the structural invariants of a descriptor list:
// labels are unique and dot-free, archives carry a well-formed digest,
// local trees carry none, and releases ascend by version.
// Local paths are not checked.
func Validate(descriptors []Descriptor) error {
	seen := make(map[string]bool, len(descriptors))
	var prev *semver.Version

	for _, d := range descriptors {
		if d.Label == "" {
			return &ValidationError{Label: d.Label, Reason: "empty label"}
		}
		if strings.Contains(d.Label, ".") {
			return &ValidationError{Label: d.Label, Reason: "label contains '.'"}
		}
		if seen[d.Label] {
			return &ValidationError{Label: d.Label, Reason: "duplicate label"}
		}
		seen[d.Label] = true

		src := d.Args.Source
		switch src.Kind {
		case SourceArchive:
			if src.Digest == "" {
				return &ValidationError{Label: d.Label, Reason: "archive source without digest"}
			}
			if _, err := ParseDigest(src.Digest); err != nil {
				return &ValidationError{Label: d.Label, Reason: err.Error()}
			}
			v, err := semver.NewVersion(d.Args.Version)
			if err != nil {
				return &ValidationError{Label: d.Label, Reason: fmt.Sprintf("release version %q: %v", d.Args.Version, err)}
			}
			if prev != nil && !v.GreaterThan(prev) {
				return &ValidationError{Label: d.Label, Reason: fmt.Sprintf("release %s does not follow %s", v, prev)}
			}
			prev = v
		case SourceLocal:
			if src.Digest != "" {
				return &ValidationError{Label: d.Label, Reason: "local source cannot carry a digest"}
			}
		default:
			return &ValidationError{Label: d.Label, Reason: fmt.Sprintf("unknown source kind %q", src.Kind)}
		}
	}
	return nil
}
