package stage

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/pins/internal/core"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func writeTarGz(t *testing.T, entries []tarEntry) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Typeflag: e.typeflag, Linkname: e.linkname}
		if e.typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if e.typeflag == tar.TypeDir {
			hdr.Mode = 0o755
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "src.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

type fakeArchives struct {
	path string
	err  error
}

func (f *fakeArchives) FetchDescriptor(ctx context.Context, d core.Descriptor) (string, error) {
	return f.path, f.err
}

func releaseDescriptor() core.Descriptor {
	return core.Descriptor{
		Label: "1_18_0",
		Args: core.BuildArgs{
			Version: "1.18.0",
			Source:  core.Archive("tahoe-lafs", "1.18.0", "sha256-00"),
		},
	}
}

func TestPrepareArchive(t *testing.T) {
	archive := writeTarGz(t, []tarEntry{
		{name: "tahoe-lafs-1.18.0/", typeflag: tar.TypeDir},
		{name: "tahoe-lafs-1.18.0/setup.py", body: "setup()\n"},
		{name: "tahoe-lafs-1.18.0/src/allmydata/__init__.py", body: "# init\n"},
	})
	dest := filepath.Join(t.TempDir(), "out")

	got, err := New(&fakeArchives{path: archive}, nil).Prepare(context.Background(), releaseDescriptor(), dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	content, err := os.ReadFile(filepath.Join(dest, "setup.py"))
	require.NoError(t, err)
	assert.Equal(t, "setup()\n", string(content))
	assert.FileExists(t, filepath.Join(dest, "src", "allmydata", "__init__.py"))
}

func TestPrepareArchiveFetchError(t *testing.T) {
	want := &core.VerificationError{Package: "tahoe-lafs", Version: "1.18.0", Expected: "sha256-aa", Actual: "sha256-bb"}
	_, err := New(&fakeArchives{err: want}, nil).Prepare(context.Background(), releaseDescriptor(), t.TempDir())

	var vErr *core.VerificationError
	require.ErrorAs(t, err, &vErr)
}

func TestPrepareRejectsTraversal(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{"dotdot file", []tarEntry{{name: "pkg/../../evil.txt", body: "x"}}},
		{"absolute symlink", []tarEntry{{name: "pkg/link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"}}},
		{"escaping symlink", []tarEntry{{name: "pkg/link", typeflag: tar.TypeSymlink, linkname: "../../outside"}}},
		{"symlink chain", []tarEntry{
			{name: "pkg/d/", typeflag: tar.TypeDir},
			{name: "pkg/d/l", typeflag: tar.TypeSymlink, linkname: ".."},
			{name: "pkg/d/l/x", typeflag: tar.TypeSymlink, linkname: ".."},
			{name: "pkg/d/l/x/evil.txt", body: "x"},
		}},
		{"file through in-tree symlink", []tarEntry{
			{name: "pkg/src/", typeflag: tar.TypeDir},
			{name: "pkg/alias", typeflag: tar.TypeSymlink, linkname: "src"},
			{name: "pkg/alias/evil.txt", body: "x"},
		}},
		{"overwrite symlink", []tarEntry{
			{name: "pkg/setup.py", typeflag: tar.TypeSymlink, linkname: "other.py"},
			{name: "pkg/setup.py", body: "x"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := writeTarGz(t, tt.entries)
			parent := t.TempDir()
			dest := filepath.Join(parent, "out")

			_, err := New(&fakeArchives{path: archive}, nil).Prepare(context.Background(), releaseDescriptor(), dest)
			require.ErrorIs(t, err, ErrUnsafePath)
			assert.NoFileExists(t, filepath.Join(parent, "evil.txt"))
		})
	}
}

func TestApplyPatchRefusesSymlinkedParent(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "src")))

	err := ApplyPatch(root, &core.Patch{Path: "src/allmydata/_version.py", Content: "x"})
	require.ErrorIs(t, err, ErrUnsafePath)
	assert.NoDirExists(t, filepath.Join(outside, "allmydata"))
}

func TestPrepareLocalAppliesPatch(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "src", "allmydata"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "setup.py"), []byte("setup()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "src", "allmydata", "_version.py"), []byte("stale\n"), 0o644))

	d := core.Descriptor{
		Label: "dev",
		Args: core.BuildArgs{
			Version: "1.18.0.post1",
			Source:  core.LocalTree(src),
			PostFetchPatch: &core.Patch{
				Path:    "src/allmydata/_version.py",
				Content: "__version__ = \"1.18.0.post1\"\n",
			},
		},
	}
	dest := filepath.Join(t.TempDir(), "out")

	_, err := New(nil, nil).Prepare(context.Background(), d, dest)
	require.NoError(t, err)

	patched, err := os.ReadFile(filepath.Join(dest, "src", "allmydata", "_version.py"))
	require.NoError(t, err)
	assert.Equal(t, d.Args.PostFetchPatch.Content, string(patched))

	original, err := os.ReadFile(filepath.Join(src, "src", "allmydata", "_version.py"))
	require.NoError(t, err)
	assert.Equal(t, "stale\n", string(original), "checkout must not be modified")
	assert.FileExists(t, filepath.Join(dest, "setup.py"))
}

func TestPrepareLocalMissing(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent"), file} {
		d := core.Descriptor{Label: "dev", Args: core.BuildArgs{Source: core.LocalTree(path)}}
		_, err := New(nil, nil).Prepare(context.Background(), d, filepath.Join(t.TempDir(), "out"))
		if !errors.Is(err, core.ErrNoDevSource) {
			t.Errorf("Prepare(%q) = %v, want ErrNoDevSource", path, err)
		}
	}
}

func TestPrepareNonEmptyDest(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "existing"), nil, 0o644))

	d := core.Descriptor{Label: "dev", Args: core.BuildArgs{Source: core.LocalTree(t.TempDir())}}
	_, err := New(nil, nil).Prepare(context.Background(), d, dest)
	assert.Error(t, err)
}

func TestApplyPatch(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, ApplyPatch(root, nil))

	for _, bad := range []string{"/etc/passwd", "../outside", "a/../../outside", ""} {
		err := ApplyPatch(root, &core.Patch{Path: bad, Content: "x"})
		assert.ErrorIs(t, err, ErrUnsafePath, "path %q", bad)
	}

	require.NoError(t, ApplyPatch(root, &core.Patch{Path: "new/dir/file.txt", Content: "hello"}))
	content, err := os.ReadFile(filepath.Join(root, "new", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestStripTop(t *testing.T) {
	tests := map[string]string{
		"tahoe-lafs-1.18.0/setup.py": "setup.py",
		"./tahoe-lafs-1.18.0/a/b.py": "a/b.py",
		"tahoe-lafs-1.18.0/":         "",
		"PKG-INFO":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripTop(in), in)
	}
}
