package core

import (
	"fmt"
	"sort"
	"sync"
)

// Table is the interface implemented by every pinned version table.
type Table interface {
	// Package returns the upstream package name (e.g., "tahoe-lafs").
	Package() string

	// ListVersions returns the descriptors in release order, oldest first,
	// development entries last. The slice and its descriptors are copies.
	ListVersions() []Descriptor

	// RenderVersionFile returns the version-metadata file content the
	// package's post-fetch patch writes for the given version.
	RenderVersionFile(version string) string

	// URLs returns the URL builder for the package's upstream index.
	URLs() URLBuilder
}

// Factory creates a table. devSource locates the development checkout used
// by local-tree entries; it is passed through unchecked.
type Factory func(devSource string) Table

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register adds a table factory under its package name.
func Register(pkg string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[pkg] = factory
}

// New creates the table registered for pkg.
func New(pkg string, devSource string) (Table, error) {
	mu.RLock()
	factory, ok := factories[pkg]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown package: %s", pkg)
	}

	return factory(devSource), nil
}

// SupportedPackages returns all registered package names, sorted.
func SupportedPackages() []string {
	mu.RLock()
	defer mu.RUnlock()

	pkgs := make([]string, 0, len(factories))
	for pkg := range factories {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
