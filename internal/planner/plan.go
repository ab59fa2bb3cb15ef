// Package planner implements the download-plan operations that turn a
// dep-cache transaction (or a source package) into the Acquire Items that
// actually fetch it (§2 "Download-plan ops": install / source-fetch /
// build-dep / cdrom-import). It sits above internal/depcache and
// internal/indexmerge and below internal/acquire: it never runs a fetch
// itself, it only builds the Item list the engine is handed.
package planner

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/debcore/apt/internal/acquire"
	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/indexmerge"
)

// Plan is the list of Items one planning operation produced, kept apart
// from any particular acquire.Engine instance so a caller can inspect or
// filter it (e.g. drop items already present under ArchivesDir) before
// handing it to Engine.Enqueue.
type Plan struct {
	Items []*acquire.Item
}

// archiveURI finds the repository root URI a version's stanza was read
// from: the RelFile.Site of its first registered file, per §3's PkgFile/
// RelFile relationship. A version present in more than one index (e.g.
// mirrored in both a stable and a security suite) downloads from whichever
// was registered first; Policy.GetCandidate has already picked the
// version, not which file backs it.
func archiveURI(c *cache.Cache, ver cache.VerID) (string, bool) {
	v := c.Version(ver)
	if len(v.Files) == 0 {
		return "", false
	}
	pf := c.PkgFile(c.VerFile(v.Files[0]).File)
	rel := c.RelFile(pf.RelFile)
	site := c.Arena.String(arena.Mixed, rel.Site)
	if site == "" {
		return "", false
	}
	return site, true
}

// debDestination names the local cache path a fetched .deb lands at,
// mirroring apt's own Acquire::Archives naming: "<archivesDir>/<package>_
// <version>_<arch>.deb" rather than whatever path segment the archive's
// pool layout happened to use, so two components/mirrors serving the same
// package never collide on disk.
func debDestination(c *cache.Cache, ver cache.VerID, archivesDir string) string {
	v := c.Version(ver)
	pkg := c.Package(v.Pkg)
	name := c.Arena.String(arena.Package, pkg.Name)
	verStr := c.Arena.String(arena.Version, v.VerStr)
	archName := c.Arena.String(arena.Mixed, pkg.Arch)
	return filepath.Join(archivesDir, fmt.Sprintf("%s_%s_%s.deb", name, sanitizeVersion(verStr), archName))
}

// sanitizeVersion replaces the colon an epoch-qualified version string
// carries (e.g. "1:2.0-3") with "%3a", matching dpkg's own filename
// escaping so the destination path never contains a literal ':'.
func sanitizeVersion(v string) string {
	out := make([]byte, 0, len(v)+2)
	for i := 0; i < len(v); i++ {
		if v[i] == ':' {
			out = append(out, '%', '3', 'a')
			continue
		}
		out = append(out, v[i])
	}
	return string(out)
}

func hashesFrom(md5, sha256 string) acquire.Hashes {
	h := acquire.Hashes{}
	if md5 != "" {
		h["MD5Sum"] = md5
	}
	if sha256 != "" {
		h["SHA256"] = sha256
	}
	return h
}

// joinURI appends a repository-relative path (a Filename or Directory
// field, always '/'-separated regardless of host OS) to a root URI.
func joinURI(root, rel string) string {
	return strings.TrimRight(root, "/") + "/" + path.Clean(rel)
}

// DebFiles is the indexmerge output every install/build-dep planning
// operation below consumes; a caller runs indexmerge.Generator.MergeAll
// once at cache-build time and keeps gen.DebFiles around (the binary cache
// image itself carries no per-version Filename/hash data, per DESIGN.md).
type DebFiles = map[cache.VerID]indexmerge.DebFile
