package core

import (
	"strings"
)

const emptySHA256 = "sha256-e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

type stubTable struct {
	pkg     string
	entries []Descriptor
}

func (s *stubTable) Package() string { return s.pkg }

func (s *stubTable) ListVersions() []Descriptor {
	out := make([]Descriptor, len(s.entries))
	for i, d := range s.entries {
		out[i] = d.Clone()
	}
	return out
}

func (s *stubTable) RenderVersionFile(version string) string {
	return "version = " + version + "\n"
}

func (s *stubTable) URLs() URLBuilder {
	return &BaseURLs{
		Ecosystem: "pypi",
		DownloadFn: func(name, version string) string {
			return "https://example.org/" + strings.Join([]string{name, version}, "-") + ".tar.gz"
		},
	}
}

func newStubTable(devSource string) *stubTable {
	return &stubTable{
		pkg: "demo",
		entries: []Descriptor{
			{Label: "1_0_0", Args: BuildArgs{Version: "1.0.0", Source: Archive("demo", "1.0.0", emptySHA256), ExtraRequirements: []string{"six"}}},
			{Label: "1_2_0", Args: BuildArgs{Version: "1.2.0", Source: Archive("demo", "1.2.0", emptySHA256)}},
			{Label: "dev", Args: BuildArgs{Version: "1.2.0.post1", Source: LocalTree(devSource), PostFetchPatch: &Patch{Path: "VERSION", Content: "1.2.0.post1\n"}}},
		},
	}
}

func init() {
	Register("demo", func(devSource string) Table { return newStubTable(devSource) })
}
