package core

import (
	"fmt"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL wraps packageurl.PackageURL with table-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// ParsePURL parses a Package URL string into its components.
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// Checksum returns the checksum qualifier converted to "<algo>-<hex>" form,
// or "" if the PURL carries none.
func (p PURL) Checksum() string {
	raw := p.Qualifiers.Map()["checksum"]
	if raw == "" {
		return ""
	}
	// The qualifier may list several comma separated checksums; the first wins.
	first, _, _ := strings.Cut(raw, ",")
	return strings.Replace(first, ":", "-", 1)
}

// DescriptorPURL renders the Package URL of a release descriptor, with its
// digest as the checksum qualifier. Local entries have no PURL.
func DescriptorPURL(ecosystem string, d Descriptor) string {
	if !d.IsRelease() {
		return ""
	}
	src := d.Args.Source
	var qualifiers packageurl.Qualifiers
	if dg, err := ParseDigest(src.Digest); err == nil {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{
			"checksum": dg.Algorithm + ":" + dg.Hex,
		})
	}
	return packageurl.NewPackageURL(ecosystem, "", src.Package, src.Version, qualifiers, "").ToString()
}

// Ecosystem returns the PURL type of t's package, or "generic".
func Ecosystem(t Table) string {
	p, err := ParsePURL(t.URLs().PURL(t.Package(), ""))
	if err != nil || p.Type == "" {
		return "generic"
	}
	return p.Type
}

// NewFromPURL resolves a versioned PURL to its table and descriptor.
// The descriptor must match the PURL's version and, if present, its checksum.
func NewFromPURL(purl string, devSource string) (Table, *Descriptor, error) {
	p, err := ParsePURL(purl)
	if err != nil {
		return nil, nil, err
	}
	if p.Version == "" {
		return nil, nil, fmt.Errorf("PURL has no version: %s", purl)
	}

	t, err := New(p.Name, devSource)
	if err != nil {
		return nil, nil, err
	}
	if p.Type != Ecosystem(t) {
		return nil, nil, &NotFoundError{Package: p.Name, Version: p.Version}
	}

	for _, d := range Releases(t) {
		if d.Args.Version != p.Version {
			continue
		}
		if sum := p.Checksum(); sum != "" && sum != d.Args.Source.Digest {
			return nil, nil, &VerificationError{
				Package:  p.Name,
				Version:  p.Version,
				Expected: d.Args.Source.Digest,
				Actual:   sum,
			}
		}
		return t, &d, nil
	}

	return nil, nil, &NotFoundError{Package: p.Name, Version: p.Version}
}
