// Package pins provides pinned version tables for third-party source
// packages, as consumed by packaging pipelines.
//
// Each table lists the released versions of a package with their archive
// digests, followed by a development entry built from a local checkout.
//
// Basic usage:
//
//	import (
//		"fmt"
//		"github.com/git-pkgs/pins"
//		_ "github.com/git-pkgs/pins/all"
//	)
//
//	table, err := pins.New("tahoe-lafs", "/home/me/src/tahoe-lafs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, d := range table.ListVersions() {
//		fmt.Println(d.Label, d.Args.Version)
//	}
//
// Tables perform no I/O. Fetching and staging sources live in the fetch and
// stage packages.
package pins

import (
	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/pins/client"
	"github.com/git-pkgs/pins/internal/core"
	"github.com/git-pkgs/pins/internal/tahoe"
)

// Re-export types from internal/core
type (
	// Table is the interface implemented by every version table.
	Table = core.Table

	// Descriptor is one entry of a version table.
	Descriptor = core.Descriptor

	// BuildArgs are the build parameters of a descriptor.
	BuildArgs = core.BuildArgs

	// SourceRef locates the source of a descriptor.
	SourceRef = core.SourceRef

	// SourceKind distinguishes archive and local sources.
	SourceKind = core.SourceKind

	// Patch rewrites one file of a source tree after it is fetched.
	Patch = core.Patch

	// Digest is a parsed content digest.
	Digest = core.Digest
)

// Re-export types from client
type (
	// URLBuilder constructs URLs for a table's package.
	URLBuilder = client.URLBuilder
)

const (
	SourceArchive = core.SourceArchive
	SourceLocal   = core.SourceLocal
)

// Re-export errors
var (
	ErrNotFound      = core.ErrNotFound
	ErrNoDevSource   = core.ErrNoDevSource
	ErrInvalidDigest = core.ErrInvalidDigest
)

// Error types
type (
	NotFoundError     = core.NotFoundError
	VerificationError = core.VerificationError
	ValidationError   = core.ValidationError
)

// New returns the version table of pkg with its development entry pointing
// at devSource. The path is not checked.
//
// Supported packages: "tahoe-lafs"
func New(pkg, devSource string) (Table, error) {
	return core.New(pkg, devSource)
}

// ListVersions returns the tahoe-lafs table: every release oldest first,
// then the development entry.
func ListVersions(devSource string) []Descriptor {
	return tahoe.New(devSource).ListVersions()
}

// RenderVersionFile returns the tahoe-lafs _version.py content reporting
// version.
func RenderVersionFile(version string) string {
	return tahoe.RenderVersionFile(version)
}

// SupportedPackages returns all registered package names.
// Note: packages must be imported to be registered.
func SupportedPackages() []string {
	return core.SupportedPackages()
}

// Lookup returns the descriptor of t with the given label.
func Lookup(t Table, label string) (*Descriptor, error) {
	return core.Lookup(t, label)
}

// LatestRelease returns the newest archive entry of t, or nil if there is none.
func LatestRelease(t Table) (*Descriptor, error) {
	return core.LatestRelease(t)
}

// Validate checks the invariants every table must hold.
func Validate(descriptors []Descriptor) error {
	return core.Validate(descriptors)
}

// LabelFor derives the label of a release version.
func LabelFor(version string) string {
	return core.LabelFor(version)
}

// ParseDigest parses a "<algo>-<hex>" digest.
func ParseDigest(s string) (Digest, error) {
	return core.ParseDigest(s)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// DescriptorPURL returns the Package URL of a release, with its digest as
// checksum qualifier. Local entries return "".
func DescriptorPURL(t Table, d Descriptor) string {
	return core.DescriptorPURL(core.Ecosystem(t), d)
}

// NewFromPURL resolves a versioned PURL such as
// pkg:pypi/tahoe-lafs@1.18.0 to its table and descriptor.
func NewFromPURL(purl, devSource string) (Table, *Descriptor, error) {
	return core.NewFromPURL(purl, devSource)
}

// BuildURLs returns a map of all non-empty URLs for a package version.
// Keys are "registry", "download", "docs", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	return client.BuildURLs(urls, name, version)
}
