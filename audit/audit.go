// Package audit compares pinned release digests against what the upstream
// index currently publishes.
package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/git-pkgs/pins/internal/core"
)

// Status is the outcome of checking one pinned release.
type Status string

const (
	StatusOK         Status = "ok"
	StatusMismatch   Status = "mismatch"
	StatusMissing    Status = "missing"
	StatusYanked     Status = "yanked"
	StatusUnverified Status = "unverified" // upstream publishes no comparable digest
)

// Upstream lists the published versions of a package.
type Upstream interface {
	FetchVersions(ctx context.Context, name string) ([]core.Version, error)
}

// Finding is the result for a single release entry.
type Finding struct {
	Label    string `json:"label" yaml:"label"`
	Version  string `json:"version" yaml:"version"`
	Status   Status `json:"status" yaml:"status"`
	Pinned   string `json:"pinned" yaml:"pinned"`
	Upstream string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
}

// Report holds findings in table order.
type Report struct {
	Package  string    `json:"package" yaml:"package"`
	Findings []Finding `json:"findings" yaml:"findings"`
}

// OK reports whether no pinned digest disagrees with upstream.
func (r *Report) OK() bool {
	for _, f := range r.Findings {
		if f.Status == StatusMismatch {
			return false
		}
	}
	return true
}

// Check audits every archive entry of t. Local entries are not checked.
func Check(ctx context.Context, t core.Table, upstream Upstream) (*Report, error) {
	releases := core.Releases(t)
	report := &Report{Package: t.Package()}
	if len(releases) == 0 {
		return report, nil
	}

	byName := make(map[string]map[string]core.Version)
	for _, d := range releases {
		name := d.Args.Source.Package
		if _, ok := byName[name]; ok {
			continue
		}
		versions, err := upstream.FetchVersions(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetching upstream versions of %s: %w", name, err)
		}
		idx := make(map[string]core.Version, len(versions))
		for _, v := range versions {
			idx[v.Number] = v
		}
		byName[name] = idx
	}

	for _, d := range releases {
		src := d.Args.Source
		f := Finding{Label: d.Label, Version: src.Version, Pinned: src.Digest}
		v, ok := byName[src.Package][src.Version]
		if !ok {
			f.Status = StatusMissing
			report.Findings = append(report.Findings, f)
			continue
		}
		f.Upstream = v.Integrity
		f.Status = compare(src.Digest, v)
		report.Findings = append(report.Findings, f)
	}
	return report, nil
}

func compare(pinned string, v core.Version) Status {
	want, err := core.ParseDigest(pinned)
	if err != nil {
		return StatusMismatch
	}
	got, err := core.ParseDigest(v.Integrity)
	if err != nil || got.Algorithm != want.Algorithm {
		return StatusUnverified
	}
	if !strings.EqualFold(got.Hex, want.Hex) {
		return StatusMismatch
	}
	if v.Status == core.StatusYanked {
		return StatusYanked
	}
	return StatusOK
}
