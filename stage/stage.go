// Package stage turns a version descriptor into a ready-to-build source tree.
//
// Archive entries are fetched, verified, and unpacked. The development entry
// is copied from its local checkout. In both cases the entry's post-fetch
// patch is applied before Prepare returns.
package stage

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"github.com/git-pkgs/pins/internal/core"
)

var ErrUnsafePath = errors.New("path escapes source tree")

// ArchiveFetcher fetches and verifies the archive of a release descriptor.
type ArchiveFetcher interface {
	FetchDescriptor(ctx context.Context, d core.Descriptor) (string, error)
}

// Stager prepares source trees for descriptors.
type Stager struct {
	archives ArchiveFetcher
	logger   *slog.Logger
}

// New creates a stager. archives may be nil if only local entries are staged.
func New(archives ArchiveFetcher, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stager{archives: archives, logger: logger}
}

// Prepare writes the source tree of d into dest and applies its patch.
// dest must not exist or be empty. Returns dest.
func (s *Stager) Prepare(ctx context.Context, d core.Descriptor, dest string) (string, error) {
	if err := ensureEmptyDir(dest); err != nil {
		return "", err
	}

	switch d.Args.Source.Kind {
	case core.SourceArchive:
		if s.archives == nil {
			return "", zerr.With(zerr.New("no archive fetcher configured"), "label", d.Label)
		}
		archive, err := s.archives.FetchDescriptor(ctx, d)
		if err != nil {
			return "", err
		}
		if err := extractTarGz(archive, dest); err != nil {
			if errors.Is(err, ErrUnsafePath) {
				return "", fmt.Errorf("entry %s: %w", d.Label, err)
			}
			return "", zerr.With(zerr.Wrap(err, "failed to extract archive"), "archive", archive)
		}

	case core.SourceLocal:
		src := d.Args.Source.Path
		if err := checkDevSource(src); err != nil {
			return "", fmt.Errorf("entry %s: %w", d.Label, err)
		}
		if err := copyTree(ctx, src, dest); err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to copy source tree"), "source", src)
		}

	default:
		return "", fmt.Errorf("entry %s: unsupported source kind %q", d.Label, d.Args.Source.Kind)
	}

	if err := ApplyPatch(dest, d.Args.PostFetchPatch); err != nil {
		return "", fmt.Errorf("entry %s: %w", d.Label, err)
	}

	s.logger.Info("staged source", "label", d.Label, "version", d.Args.Version, "dest", dest)
	return dest, nil
}

// ApplyPatch overwrites the patched file under root. A nil patch is a no-op.
func ApplyPatch(root string, p *core.Patch) error {
	if p == nil {
		return nil
	}
	target, err := inside(root, p.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("applying patch: %w", err)
	}
	if err := os.WriteFile(target, []byte(p.Content), 0o644); err != nil {
		return fmt.Errorf("applying patch: %w", err)
	}
	return nil
}

func checkDevSource(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no path given", core.ErrNoDevSource)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoDevSource, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", core.ErrNoDevSource, path)
	}
	return nil
}

func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("destination %s is not empty", dir)
	}
	return nil
}

// within joins rel onto root, refusing absolute paths and paths that leave root.
func within(root, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return filepath.Join(root, clean), nil
}

// inside is within plus a filesystem check: no existing component of rel
// below root may be a symlink.
func inside(root, rel string) (string, error) {
	target, err := within(root, rel)
	if err != nil {
		return "", err
	}
	cur := root
	for _, part := range strings.Split(filepath.Clean(filepath.FromSlash(rel)), string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return target, nil
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %q passes through symlink %q", ErrUnsafePath, rel, cur)
		}
	}
	return target, nil
}

// stripTop removes the leading directory sdists wrap their contents in.
func stripTop(name string) string {
	name = strings.TrimPrefix(name, "./")
	if i := strings.Index(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return ""
}

func extractTarGz(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rel := stripTop(hdr.Name)
		if rel == "" || rel == "/" {
			continue
		}
		target, err := inside(dest, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("%w: link %q", ErrUnsafePath, hdr.Linkname)
			}
			linkDir := filepath.Dir(strings.TrimSuffix(filepath.ToSlash(rel), "/"))
			if _, err := within(dest, filepath.Join(linkDir, hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			in, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()
			return writeFile(target, in, info.Mode().Perm())
		}
		return nil
	})
}
