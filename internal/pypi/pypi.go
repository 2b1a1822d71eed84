// Package pypi looks up release metadata on pypi.org so pinned digests can
// be checked against upstream.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/pins/internal/core"
)

const DefaultURL = "https://pypi.org"

type Registry struct {
	baseURL string
	client  *core.Client
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	return &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type versionResponse struct {
	Info infoBlock     `json:"info"`
	URLs []releaseFile `json:"urls"`
}

type infoBlock struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type releaseFile struct {
	Digests      map[string]string `json:"digests"`
	Filename     string            `json:"filename"`
	URL          string            `json:"url"`
	UploadTime   string            `json:"upload_time"`
	Yanked       bool              `json:"yanked"`
	YankedReason string            `json:"yanked_reason"`
	PackageType  string            `json:"packagetype"`
	Size         int               `json:"size"`
}

// FetchVersions returns every published version of name, described by its
// source distribution. Versions without an sdist have no Integrity.
func (r *Registry) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", r.baseURL, name)

	var resp packageResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, notFound(err, name, "")
	}

	versions := make([]core.Version, 0, len(resp.Releases))
	for num, files := range resp.Releases {
		versions = append(versions, toVersion(num, files))
	}
	return versions, nil
}

// FetchVersion returns one published version of name.
func (r *Registry) FetchVersion(ctx context.Context, name, version string) (*core.Version, error) {
	url := fmt.Sprintf("%s/pypi/%s/%s/json", r.baseURL, name, version)

	var resp versionResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, notFound(err, name, version)
	}

	v := toVersion(version, resp.URLs)
	return &v, nil
}

func notFound(err error, name, version string) error {
	var httpErr *core.HTTPError
	if errors.As(err, &httpErr) && httpErr.IsNotFound() {
		return &core.NotFoundError{Package: name, Version: version}
	}
	return err
}

func toVersion(num string, files []releaseFile) core.Version {
	v := core.Version{Number: num}

	file, ok := sdist(files)
	if !ok {
		return v
	}

	if file.UploadTime != "" {
		v.PublishedAt, _ = time.Parse("2006-01-02T15:04:05", file.UploadTime)
	}
	if file.Yanked {
		v.Status = core.StatusYanked
	}
	if sha256, ok := file.Digests["sha256"]; ok {
		v.Integrity = "sha256-" + sha256
	}
	v.Metadata = map[string]any{
		"download_url":  file.URL,
		"filename":      file.Filename,
		"yanked_reason": file.YankedReason,
		"size":          file.Size,
	}
	return v
}

func sdist(files []releaseFile) (releaseFile, bool) {
	for _, f := range files {
		if f.PackageType == "sdist" {
			return f, true
		}
	}
	return releaseFile{}, false
}

// NormalizeName applies PEP 503 name normalization.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, ".", "-")
	return name
}
