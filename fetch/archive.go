package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/git-pkgs/pins/internal/core"
)

// Archiver fetches pinned archives into a content-addressed directory,
// verifying each against its digest.
//
// Layout: <dir>/<algorithm>/<hex>/<filename>.
type Archiver struct {
	fetcher  FetcherInterface
	resolver *Resolver
	dir      string
	logger   *slog.Logger
}

// NewArchiver creates an archiver storing verified archives under dir.
func NewArchiver(f FetcherInterface, r *Resolver, dir string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Archiver{fetcher: f, resolver: r, dir: dir, logger: logger}
}

// Fetch returns the local path of the archive for name at version, after
// checking its content against digest. A verified copy already on disk is
// reused; a corrupt one is discarded and fetched again.
func (a *Archiver) Fetch(ctx context.Context, name, version, digest string) (string, error) {
	want, err := core.ParseDigest(digest)
	if err != nil {
		return "", err
	}

	slot := filepath.Join(a.dir, want.Algorithm, want.Hex)
	if path, ok := a.cached(slot, want); ok {
		a.logger.Debug("archive cache hit", "package", name, "version", version, "path", path)
		return path, nil
	}

	info, err := a.resolver.Resolve(ctx, core.Archive(name, version, digest))
	if err != nil {
		return "", err
	}

	artifact, err := a.fetcher.Fetch(ctx, info.URL)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &core.NotFoundError{Package: name, Version: version}
		}
		return "", fmt.Errorf("fetching %s %s: %w", name, version, err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if err := os.MkdirAll(slot, 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(slot, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := want.NewHash()
	n, err := io.Copy(io.MultiWriter(tmp, h), artifact.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", info.URL, err)
	}

	got := want.Sum(h)
	if got.Hex != want.Hex {
		a.logger.Error("digest mismatch", "package", name, "version", version, "expected", want.String(), "actual", got.String())
		return "", &core.VerificationError{
			Package:  name,
			Version:  version,
			Expected: want.String(),
			Actual:   got.String(),
		}
	}

	final := filepath.Join(slot, info.Filename)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("storing archive: %w", err)
	}

	a.logger.Info("fetched archive", "package", name, "version", version, "bytes", n, "path", final)
	return final, nil
}

// cached returns a previously stored archive in slot if it still matches want.
func (a *Archiver) cached(slot string, want core.Digest) (string, bool) {
	entries, err := os.ReadDir(slot)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		path := filepath.Join(slot, e.Name())
		if err := verifyFile(path, want); err == nil {
			return path, true
		}
		a.logger.Warn("discarding corrupt cached archive", "path", path)
		_ = os.Remove(path)
	}
	return "", false
}

func verifyFile(path string, want core.Digest) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	h := want.NewHash()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if got := want.Sum(h); got.Hex != want.Hex {
		return &core.VerificationError{Expected: want.String(), Actual: got.String()}
	}
	return nil
}

// FetchDescriptor fetches the archive of a release descriptor.
func (a *Archiver) FetchDescriptor(ctx context.Context, d core.Descriptor) (string, error) {
	src := d.Args.Source
	if src.Kind != core.SourceArchive {
		return "", fmt.Errorf("entry %s has no archive source", d.Label)
	}
	return a.Fetch(ctx, src.Package, src.Version, src.Digest)
}
