// Package all imports all supported version tables.
//
// Import this package for its side effects to register every table:
//
//	import (
//		"github.com/git-pkgs/pins"
//		_ "github.com/git-pkgs/pins/all"
//	)
//
//	// Now all tables are available
//	packages := pins.SupportedPackages()
//	// ["tahoe-lafs"]
package all

import (
	_ "github.com/git-pkgs/pins/internal/tahoe"
)
