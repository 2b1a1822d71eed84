package pins_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/git-pkgs/pins"
	_ "github.com/git-pkgs/pins/all"
)

func TestSupportedPackages(t *testing.T) {
	packages := pins.SupportedPackages()

	found := false
	for _, p := range packages {
		if p == "tahoe-lafs" {
			found = true
		}
	}
	if !found {
		t.Errorf("tahoe-lafs not registered: %v", packages)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		pkg     string
		wantErr bool
	}{
		{"tahoe-lafs", false},
		{"unknown", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			table, err := pins.New(tt.pkg, "/src/tahoe")
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.pkg, err, tt.wantErr)
				return
			}
			if !tt.wantErr && table.Package() != tt.pkg {
				t.Errorf("Package() = %q, want %q", table.Package(), tt.pkg)
			}
		})
	}
}

func TestListVersions(t *testing.T) {
	descriptors := pins.ListVersions("/src/tahoe")

	labels := make([]string, len(descriptors))
	for i, d := range descriptors {
		labels[i] = d.Label
	}
	if got := strings.Join(labels, ","); got != "1_17_1,1_18_0,dev" {
		t.Errorf("labels = %s", got)
	}
	if err := pins.Validate(descriptors); err != nil {
		t.Errorf("Validate: %v", err)
	}

	dev := descriptors[len(descriptors)-1]
	if dev.Args.Source.Kind != pins.SourceLocal || dev.Args.Source.Path != "/src/tahoe" {
		t.Errorf("dev source = %+v", dev.Args.Source)
	}
	if dev.Args.PostFetchPatch == nil || dev.Args.PostFetchPatch.Content != pins.RenderVersionFile(dev.Args.Version) {
		t.Error("dev patch should carry the rendered version file")
	}
}

func TestLookupAndLatest(t *testing.T) {
	table, err := pins.New("tahoe-lafs", "")
	if err != nil {
		t.Fatal(err)
	}

	latest, err := pins.LatestRelease(table)
	if err != nil {
		t.Fatalf("LatestRelease: %v", err)
	}
	if latest.Label != "1_18_0" {
		t.Errorf("latest = %s", latest.Label)
	}

	_, err = pins.Lookup(table, "9_9_9")
	if !errors.Is(err, pins.ErrNotFound) {
		t.Errorf("Lookup = %v, want ErrNotFound", err)
	}
	var nf *pins.NotFoundError
	if !errors.As(err, &nf) || nf.Label != "9_9_9" {
		t.Errorf("Lookup error = %#v", err)
	}
}

func TestPURLRoundTrip(t *testing.T) {
	table, _ := pins.New("tahoe-lafs", "")
	d, err := pins.Lookup(table, "1_18_0")
	if err != nil {
		t.Fatal(err)
	}

	p := pins.DescriptorPURL(table, *d)
	if !strings.HasPrefix(p, "pkg:pypi/tahoe-lafs@1.18.0?checksum=") {
		t.Fatalf("DescriptorPURL = %q", p)
	}

	if _, err := pins.ParsePURL(p); err != nil {
		t.Errorf("ParsePURL(%q): %v", p, err)
	}

	_, got, err := pins.NewFromPURL(p, "")
	if err != nil {
		t.Fatalf("NewFromPURL: %v", err)
	}
	if got.Label != d.Label {
		t.Errorf("NewFromPURL label = %s, want %s", got.Label, d.Label)
	}

	dev, _ := pins.Lookup(table, "dev")
	if p := pins.DescriptorPURL(table, *dev); p != "" {
		t.Errorf("dev entry PURL = %q, want empty", p)
	}
}

func TestBuildURLs(t *testing.T) {
	table, _ := pins.New("tahoe-lafs", "")
	urls := pins.BuildURLs(table.URLs(), "tahoe-lafs", "1.18.0")

	if urls["download"] != "https://files.pythonhosted.org/packages/source/t/tahoe-lafs/tahoe-lafs-1.18.0.tar.gz" {
		t.Errorf("download = %q", urls["download"])
	}
	if urls["registry"] == "" || urls["purl"] == "" {
		t.Errorf("missing URLs: %v", urls)
	}
}
