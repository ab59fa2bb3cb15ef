package indexmerge

import (
	"fmt"
	"os"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
)

// Generator drives cache construction across one or more IndexFile
// producers, per §4.1 "Building": it orders Release-file registration ahead
// of Package-file registration ahead of per-record NewPackage/NewVersion
// calls, and installs cross-references (reverse-depends, provides-reverse
// link) as each record is added — which, in this redesign, just means
// calling straight through to the cache's own Cache.NewDepends/NewProvides,
// since those already install the reverse links at insertion time (§4.1,
// §9 "reverse-dep lists").
type Generator struct {
	Cache   *cache.Cache
	Compare cache.VersionComparator

	// pendingFileDeps accumulates path-valued Depends records (e.g. a
	// `Depends: /usr/bin/foo` line naming a file rather than a package)
	// seen on the first merge pass, for the second-pass resolution into
	// provides described in §4.6: "file-dependencies... are resolved into
	// provides."
	pendingFileDeps []fileDep
	providedPaths   map[string][]cache.VerID

	// Sources accumulates every Sources-file stanza a SourcesFile producer
	// merges, for internal/planner's build-dep plan; it is not part of
	// cache.Cache since source packages are not installable candidates.
	Sources []SourceRecord

	// DebFiles maps a binary Version to the archive-relative path and
	// expected hashes internal/planner needs to build an install plan's
	// fetch Item; it is kept outside cache.Cache for the same reason as
	// Sources — these are Acquire-plan inputs, not cache entities.
	DebFiles map[cache.VerID]DebFile
}

// DebFile is the download descriptor for one Version, taken straight off
// its Packages-file stanza (Filename/Size/MD5sum/SHA256).
type DebFile struct {
	Filename string
	Size     int64
	MD5      string
	SHA256   string
}

// RegisterDebFile records ver's download descriptor, keyed by whichever
// PkgFile's stanza supplied it; a version appearing in more than one index
// keeps the first descriptor seen, matching FindOrNewVersion's "first
// stanza wins" dedupe rule.
func (g *Generator) RegisterDebFile(ver cache.VerID, f DebFile) {
	if g.DebFiles == nil {
		g.DebFiles = map[cache.VerID]DebFile{}
	}
	if _, ok := g.DebFiles[ver]; ok {
		return
	}
	g.DebFiles[ver] = f
}

type fileDep struct {
	ver  cache.VerID
	path string
}

// NewGenerator returns a Generator building into c, using cmp for version
// ordering (the same comparator c.NewVersion expects).
func NewGenerator(c *cache.Cache, cmp cache.VersionComparator) *Generator {
	return &Generator{Cache: c, Compare: cmp}
}

// MergeAll runs every producer's Merge in order, then resolves file
// dependencies against the provides the first pass installed — the second
// pass in §4.6.
func (g *Generator) MergeAll(files []IndexFile, diags *errstack.Diagnostics) error {
	for _, f := range files {
		if !f.Exists() {
			diags.Add(errstack.Notice, "index %s does not exist, skipping", f.Describe(true))
			continue
		}
		if err := f.Merge(g, diags); err != nil {
			diags.Wrap(errstack.Error, err, "merging %s", f.Describe(false))
			return err
		}
	}
	g.resolveFileDeps()
	return nil
}

// resolveFileDeps turns every pending path-valued Depends target into a
// Provides record from whichever version registered that path (via
// RegisterProvidedPath), so a dependency on e.g. "/bin/sh" is satisfied the
// same way a dependency on a package name would be. Deriving the path list
// itself requires unpacking .deb contents, which is the dpkg invocation
// layer's job and out of scope here (spec.md §1); this resolves whatever
// paths a producer did register.
func (g *Generator) resolveFileDeps() {
	for _, fd := range g.pendingFileDeps {
		providers := g.providedPaths[fd.path]
		for _, providerVer := range providers {
			if providerVer == fd.ver {
				continue
			}
			g.Cache.NewProvides(providerVer, fd.path, "", cache.ProvidesExplicit)
		}
	}
}

// AddFileDependency records a path-valued dependency target for the
// second-pass resolution in §4.6.
func (g *Generator) AddFileDependency(ver cache.VerID, path string) {
	g.pendingFileDeps = append(g.pendingFileDeps, fileDep{ver: ver, path: path})
}

// FindOrNewVersion resolves the §3 "ties broken by control-hash equality"
// rule: if pkg already carries a version with the exact string verStr, it
// is reused only when hash matches (the same control stanza seen again,
// e.g. via two mirrors of the same Packages file); a differing hash at an
// identical version string is a malformed-archive condition this logs as a
// Warning and otherwise ignores, keeping the first stanza seen, rather than
// corrupting the package's version ordering with a phantom duplicate.
func (g *Generator) FindOrNewVersion(pkg cache.PkgID, verStr string, hash uint64, diags *errstack.Diagnostics) cache.VerID {
	for _, vid := range g.Cache.Package(pkg).Versions {
		v := g.Cache.Version(vid)
		if g.Cache.Arena.String(arena.Version, v.VerStr) != verStr {
			continue
		}
		if v.Hash != hash {
			diags.Add(errstack.Warning, "duplicate version string %q for a package with a different control hash; keeping the first stanza seen", verStr)
		}
		return vid
	}
	vid := g.Cache.NewVersion(pkg, verStr, g.Compare)
	g.Cache.Version(vid).Hash = hash
	return vid
}

// RegisterProvidedPath records that ver's .deb ships path, so a later
// path-valued dependency on it resolves during resolveFileDeps.
func (g *Generator) RegisterProvidedPath(ver cache.VerID, path string) {
	if g.providedPaths == nil {
		g.providedPaths = map[string][]cache.VerID{}
	}
	g.providedPaths[path] = append(g.providedPaths[path], ver)
}

// RegisteredPkgFiles is the generator-wide registry an IndexFile's
// FindInCache consults; keyed by the absolute filesystem path used at
// registration time.
type RegisteredPkgFiles struct {
	byPath map[string]cache.PkgFileID
}

func NewRegisteredPkgFiles() *RegisteredPkgFiles {
	return &RegisteredPkgFiles{byPath: map[string]cache.PkgFileID{}}
}

func (r *RegisteredPkgFiles) Find(path string) cache.PkgFileID { return r.byPath[path] }
func (r *RegisteredPkgFiles) Register(path string, id cache.PkgFileID) {
	r.byPath[path] = id
}

// statSize is a small os.Stat wrapper every producer's Size/Exists uses, so
// a missing file and a zero-byte file are distinguished the way §4.6
// expects ("Exists() -> bool" is a separate call from "size() -> u64").
func statSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

func describePath(kind, path string, short bool) string {
	if short {
		return kind
	}
	return fmt.Sprintf("%s (%s)", kind, path)
}
