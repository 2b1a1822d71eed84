package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-pkgs/pins/internal/core"
)

func digestOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "sha256-" + hex.EncodeToString(sum[:])
}

func newTestArchiver(t *testing.T, handler http.HandlerFunc) (*Archiver, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	f := NewFetcher(WithMaxRetries(1), WithBaseDelay(5*time.Millisecond))
	t.Cleanup(f.Close)

	a := NewArchiver(NewCircuitBreakerFetcher(f), NewResolver(staticURLs(server.URL), nil), t.TempDir(), nil)
	return a, &hits
}

func TestArchiverFetchVerified(t *testing.T) {
	content := "sdist bytes"
	a, hits := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tahoe-lafs-1.18.0.tar.gz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(content))
	})

	path, err := a.Fetch(context.Background(), "tahoe-lafs", "1.18.0", digestOf(content))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Base(path) != "tahoe-lafs-1.18.0.tar.gz" {
		t.Errorf("path = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != content {
		t.Errorf("stored content = %q", got)
	}

	again, err := a.Fetch(context.Background(), "tahoe-lafs", "1.18.0", digestOf(content))
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}
	if again != path {
		t.Errorf("second Fetch path = %q, want %q", again, path)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}
}

func TestArchiverDigestMismatch(t *testing.T) {
	a, _ := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	})

	want := digestOf("original")
	_, err := a.Fetch(context.Background(), "tahoe-lafs", "1.17.1", want)

	var vErr *core.VerificationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Fetch = %v, want *core.VerificationError", err)
	}
	if vErr.Expected != want || vErr.Actual != digestOf("tampered") {
		t.Errorf("unexpected digests: expected=%s actual=%s", vErr.Expected, vErr.Actual)
	}

	slot := filepath.Join(a.dir, "sha256", want[len("sha256-"):])
	entries, _ := os.ReadDir(slot)
	if len(entries) != 0 {
		t.Errorf("mismatched download left files behind: %v", entries)
	}
}

func TestArchiverNotFound(t *testing.T) {
	a, _ := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := a.Fetch(context.Background(), "tahoe-lafs", "0.0.1", digestOf("x"))

	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Fetch = %v, want *core.NotFoundError", err)
	}
	if nf.Version != "0.0.1" {
		t.Errorf("Version = %q", nf.Version)
	}
}

func TestArchiverInvalidDigest(t *testing.T) {
	a, hits := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := a.Fetch(context.Background(), "tahoe-lafs", "1.18.0", "md5-abc")
	if !errors.Is(err, core.ErrInvalidDigest) {
		t.Errorf("Fetch = %v, want ErrInvalidDigest", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Error("invalid digest should fail before any request")
	}
}

func TestArchiverReplacesCorruptCache(t *testing.T) {
	content := "good bytes"
	a, hits := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	})
	digest := digestOf(content)

	path, err := a.Fetch(context.Background(), "tahoe-lafs", "1.18.0", digest)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("bit rot"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Fetch(context.Background(), "tahoe-lafs", "1.18.0", digest); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("upstream hit %d times, want 2", n)
	}
}

func TestFetchDescriptorRejectsLocal(t *testing.T) {
	a, _ := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {})
	d := core.Descriptor{Label: "dev", Args: core.BuildArgs{Source: core.LocalTree("/src")}}
	if _, err := a.FetchDescriptor(context.Background(), d); err == nil {
		t.Error("expected error for local source")
	}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	good := "good release"
	a, _ := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(good))
	})

	descriptors := []core.Descriptor{
		{Label: "1_0_0", Args: core.BuildArgs{Version: "1.0.0", Source: core.Archive("demo", "1.0.0", digestOf(good))}},
		{Label: "1_1_0", Args: core.BuildArgs{Version: "1.1.0", Source: core.Archive("demo", "1.1.0", digestOf("other"))}},
		{Label: "dev", Args: core.BuildArgs{Version: "1.1.0.post1", Source: core.LocalTree("")}},
	}

	results := FetchAll(context.Background(), a, descriptors, 2)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["1_0_0"].Err != nil || results["1_0_0"].Path == "" {
		t.Errorf("1_0_0: %+v", results["1_0_0"])
	}
	var vErr *core.VerificationError
	if !errors.As(results["1_1_0"].Err, &vErr) {
		t.Errorf("1_1_0: err = %v, want *core.VerificationError", results["1_1_0"].Err)
	}
	if _, ok := results["dev"]; ok {
		t.Error("local entries should be skipped")
	}
}
