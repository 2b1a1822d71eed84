package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/git-pkgs/pins/internal/core"
)

var ErrNoDownloadURL = errors.New("no download URL available")

// MetadataSource looks up upstream metadata for a version. It is consulted
// when the table's URL builder cannot construct a download URL.
type MetadataSource interface {
	FetchVersion(ctx context.Context, name, version string) (*core.Version, error)
}

// ArtifactInfo describes where a source comes from.
type ArtifactInfo struct {
	URL       string // archives only
	Filename  string // archives only
	Integrity string // pinned digest, archives only
	Path      string // local trees only
}

// Resolver maps source refs to download locations. Resolutions are cached.
type Resolver struct {
	urls     core.URLBuilder
	metadata MetadataSource
	cache    *gocache.Cache
}

// NewResolver creates a resolver that builds URLs with urls. metadata may be nil.
func NewResolver(urls core.URLBuilder, metadata MetadataSource) *Resolver {
	return &Resolver{
		urls:     urls,
		metadata: metadata,
		cache:    gocache.New(30*time.Minute, time.Hour),
	}
}

// Resolve returns where the source of ref can be obtained.
func (r *Resolver) Resolve(ctx context.Context, ref core.SourceRef) (*ArtifactInfo, error) {
	switch ref.Kind {
	case core.SourceLocal:
		return &ArtifactInfo{Path: ref.Path}, nil
	case core.SourceArchive:
	default:
		return nil, fmt.Errorf("unsupported source kind %q", ref.Kind)
	}

	key := ref.Package + "@" + ref.Version
	if cached, ok := r.cache.Get(key); ok {
		info := *cached.(*ArtifactInfo)
		info.Integrity = ref.Digest
		return &info, nil
	}

	info, err := r.resolveArchive(ctx, ref)
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(key, info)
	out := *info
	return &out, nil
}

func (r *Resolver) resolveArchive(ctx context.Context, ref core.SourceRef) (*ArtifactInfo, error) {
	if url := r.urls.Download(ref.Package, ref.Version); url != "" {
		return &ArtifactInfo{
			URL:       url,
			Filename:  filenameFromURL(url),
			Integrity: ref.Digest,
		}, nil
	}

	if r.metadata == nil {
		return nil, ErrNoDownloadURL
	}

	v, err := r.metadata.FetchVersion(ctx, ref.Package, ref.Version)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	if url, ok := v.Metadata["download_url"].(string); ok && url != "" {
		return &ArtifactInfo{
			URL:       url,
			Filename:  filenameFromURL(url),
			Integrity: ref.Digest,
		}, nil
	}
	return nil, ErrNoDownloadURL
}

func filenameFromURL(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		url = url[:idx]
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
