package tahoe

import (
	"strings"
)

// VersionFilePath is where tahoe-lafs keeps its generated version metadata,
// relative to the source root.
const VersionFilePath = "src/allmydata/_version.py"

// RenderVersionFile generates the content of _version.py for version.
// The version is interpolated as-is; it must not contain quotes, backslashes
// or newlines.
func RenderVersionFile(version string) string {
	var b strings.Builder
	b.WriteString("# This _version.py is generated by pins.\n")
	b.WriteString("\n")
	writeField(&b, "__pkgname__", PackageName)
	writeField(&b, "real_version", version)
	writeField(&b, "full_version", version)
	writeField(&b, "branch", "")
	writeField(&b, "verstr", version)
	writeField(&b, "__version__", version)
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(` = "`)
	b.WriteString(value)
	b.WriteString("\"\n")
}
