// Package tahoe provides the pinned version table for tahoe-lafs.
package tahoe

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/pins/internal/core"
)

const (
	PackageName = "tahoe-lafs"
	DefaultURL  = "https://pypi.org"
	SourceURL   = "https://files.pythonhosted.org/packages/source"
	ecosystem   = "pypi"

	// DevLabel names the rolling entry built from a local checkout.
	DevLabel = "dev"

	// DevVersion is made up. A checkout has no trustworthy version metadata,
	// so the dev entry claims to sit just past the newest release.
	DevVersion = "1.18.0.post1"
)

// Requirements installed on top of the declared ones for every release entry.
var releaseRequirements = []string{"eliot", "foolscap"}

// Releases in upstream order, oldest first. Append new releases at the end.
//
// The digests below are unverified placeholders, not the published sha256 of
// the PyPI sdists. Replace each with the value PyPI lists for the release;
// until then `pins check` reports both entries as mismatched.
var releases = []struct {
	version string
	digest  string
}{
	{"1.17.1", "sha256-7c5dbeb8e2e2efbcb2a9d77e8b3d8d5bca34c6f2cbb9a8d3b8f6d3f1e4a7d2c9"},
	{"1.18.0", "sha256-4b0b8a71eebfa2b6f4c4c5b2d3a3e8e97e5a1d6a2a4f58e3d4ab7c6f2e1d9b80"},
}

func init() {
	core.Register(PackageName, func(devSource string) core.Table {
		return New(devSource)
	})
}

// Table is the tahoe-lafs version table. It is immutable after New.
type Table struct {
	descriptors []core.Descriptor
	urls        *core.BaseURLs
}

// New builds the table. devSource is the development checkout used by the
// dev entry; it is not checked.
func New(devSource string) *Table {
	descriptors := make([]core.Descriptor, 0, len(releases)+1)
	for _, r := range releases {
		descriptors = append(descriptors, core.Descriptor{
			Label: core.LabelFor(r.version),
			Args: core.BuildArgs{
				Version:           r.version,
				Source:            core.Archive(PackageName, r.version, r.digest),
				ExtraRequirements: append([]string(nil), releaseRequirements...),
			},
		})
	}
	descriptors = append(descriptors, devDescriptor(devSource))

	return &Table{
		descriptors: descriptors,
		urls:        newURLs(SourceURL),
	}
}

func devDescriptor(devSource string) core.Descriptor {
	return core.Descriptor{
		Label: DevLabel,
		Args: core.BuildArgs{
			Version: DevVersion,
			Source:  core.LocalTree(devSource),
			PostFetchPatch: &core.Patch{
				Path:    VersionFilePath,
				Content: RenderVersionFile(DevVersion),
			},
		},
	}
}

func (t *Table) Package() string {
	return PackageName
}

func (t *Table) ListVersions() []core.Descriptor {
	out := make([]core.Descriptor, len(t.descriptors))
	for i, d := range t.descriptors {
		out[i] = d.Clone()
	}
	return out
}

func (t *Table) RenderVersionFile(version string) string {
	return RenderVersionFile(version)
}

func (t *Table) URLs() core.URLBuilder {
	return t.urls
}

// WithRelease returns a new table with one more release placed after the
// existing releases and before the dev entry. The receiver is unchanged.
// The extended table must still validate, so version has to be new and
// newer than every existing release.
func (t *Table) WithRelease(version, digest string, extraRequirements ...string) (*Table, error) {
	next := &Table{urls: t.urls}
	next.descriptors = make([]core.Descriptor, 0, len(t.descriptors)+1)

	added := core.Descriptor{
		Label: core.LabelFor(version),
		Args: core.BuildArgs{
			Version:           version,
			Source:            core.Archive(PackageName, version, digest),
			ExtraRequirements: append([]string(nil), extraRequirements...),
		},
	}

	inserted := false
	for _, d := range t.descriptors {
		if !inserted && !d.IsRelease() {
			next.descriptors = append(next.descriptors, added)
			inserted = true
		}
		next.descriptors = append(next.descriptors, d.Clone())
	}
	if !inserted {
		next.descriptors = append(next.descriptors, added)
	}

	if err := core.Validate(next.descriptors); err != nil {
		return nil, fmt.Errorf("adding release %s: %w", version, err)
	}
	return next, nil
}

// WithMirror returns a copy of the table that downloads sdists from base
// instead of files.pythonhosted.org.
func (t *Table) WithMirror(base string) *Table {
	base = strings.TrimSuffix(base, "/")
	return &Table{
		descriptors: t.descriptors,
		urls:        newURLs(base),
	}
}

// newURLs builds the PyPI links for tahoe-lafs with sdists served from
// sourceURL.
func newURLs(sourceURL string) *core.BaseURLs {
	return &core.BaseURLs{
		Ecosystem: ecosystem,
		RegistryFn: func(name, version string) string {
			if version != "" {
				return fmt.Sprintf("%s/project/%s/%s/", DefaultURL, name, version)
			}
			return fmt.Sprintf("%s/project/%s/", DefaultURL, name)
		},
		DownloadFn: func(name, version string) string {
			if name == "" || version == "" {
				return ""
			}
			return fmt.Sprintf("%s/%s/%s/%s-%s.tar.gz", sourceURL, name[:1], name, name, version)
		},
		DocumentationFn: func(name, version string) string {
			if version != "" {
				return fmt.Sprintf("https://%s.readthedocs.io/en/%s-%s/", name, name, version)
			}
			return fmt.Sprintf("https://%s.readthedocs.io/", name)
		},
	}
}
