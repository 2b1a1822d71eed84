// Package core provides the shared version table types and the table registry.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Descriptor is one row of a version table: everything needed to obtain and
// patch one buildable version.
type Descriptor struct {
	Label string    `json:"label" yaml:"label"` // attribute-safe, never contains "."
	Args  BuildArgs `json:"build_args" yaml:"build_args"`
}

// BuildArgs are the parameters handed to the external build step.
type BuildArgs struct {
	Version           string    `json:"version" yaml:"version"`
	Source            SourceRef `json:"source" yaml:"source"`
	ExtraRequirements []string  `json:"extra_requirements,omitempty" yaml:"extra_requirements,omitempty"`
	PostFetchPatch    *Patch    `json:"post_fetch_patch,omitempty" yaml:"post_fetch_patch,omitempty"`
}

// SourceKind says how a descriptor's source is obtained.
type SourceKind string

const (
	// SourceArchive is a content-addressed archive fetched from upstream.
	SourceArchive SourceKind = "archive"
	// SourceLocal is a source tree already present on disk. It has no digest.
	SourceLocal SourceKind = "local"
)

// SourceRef locates the source of a descriptor. Archive refs set Package,
// Version and Digest; local refs set Path only.
type SourceRef struct {
	Kind    SourceKind `json:"kind" yaml:"kind"`
	Package string     `json:"package,omitempty" yaml:"package,omitempty"`
	Version string     `json:"version,omitempty" yaml:"version,omitempty"`
	Digest  string     `json:"digest,omitempty" yaml:"digest,omitempty"` // sha256-<hex>
	Path    string     `json:"path,omitempty" yaml:"path,omitempty"`
}

// Archive returns a reference to a fetched, digest-verified archive.
func Archive(pkg, version, digest string) SourceRef {
	return SourceRef{Kind: SourceArchive, Package: pkg, Version: version, Digest: digest}
}

// LocalTree returns a reference to an existing source tree. The path is not
// checked here; whoever uses the tree reports a missing one.
func LocalTree(path string) SourceRef {
	return SourceRef{Kind: SourceLocal, Path: path}
}

func (s SourceRef) String() string {
	if s.Kind == SourceLocal {
		return "local:" + s.Path
	}
	return fmt.Sprintf("%s==%s (%s)", s.Package, s.Version, s.Digest)
}

// Patch overwrites one file of a fetched source tree before the build runs.
type Patch struct {
	Path    string `json:"path" yaml:"path"` // relative to the source root
	Content string `json:"content" yaml:"content"`
}

const heredocMarker = "PINS_EOF"

// Script renders the patch as a shell instruction that writes Content to Path
// from the source root. The heredoc is quoted so nothing in Content expands.
func (p *Patch) Script() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "cat > '%s' <<'%s'\n", p.Path, heredocMarker)
	b.WriteString(p.Content)
	if !strings.HasSuffix(p.Content, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(heredocMarker + "\n")
	return b.String()
}

// IsRelease reports whether the descriptor is a digest-pinned upstream release.
func (d Descriptor) IsRelease() bool {
	return d.Args.Source.Kind == SourceArchive
}

// Clone returns a deep copy so callers can't mutate table data.
func (d Descriptor) Clone() Descriptor {
	out := d
	if d.Args.ExtraRequirements != nil {
		out.Args.ExtraRequirements = append([]string(nil), d.Args.ExtraRequirements...)
	}
	if d.Args.PostFetchPatch != nil {
		p := *d.Args.PostFetchPatch
		out.Args.PostFetchPatch = &p
	}
	return out
}

// Version represents upstream metadata about one published version.
type Version struct {
	Number      string
	PublishedAt time.Time
	Integrity   string        // sha256-...
	Status      VersionStatus // "", "yanked"
	Metadata    map[string]any
}

// VersionStatus represents the status of an upstream version.
type VersionStatus string

const (
	StatusNone   VersionStatus = ""
	StatusYanked VersionStatus = "yanked"
)
