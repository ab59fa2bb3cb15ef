// Package indexmerge implements the Index Merge collaborator (§4.6): the
// parsers that turn a Release file and its Packages/Sources/status index
// files into cache entries, plus the release-file trust decisions that feed
// Policy's NotAutomatic/ButAutomaticUpgrades handling (§4.3).
//
// Every producer speaks the same small contract back to the generator:
// exists, size, describe, findInCache, merge. That mirrors the real apt's
// pkgIndexFile/debIndexFile split, kept here as one Go interface rather than
// a class hierarchy since Go has no use for the inheritance.
package indexmerge

import (
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
)

// IndexFile is one producer of cache entries: a Packages file, a Sources
// file, a Translation-xx file, the dpkg status file, or a bare .deb/.dsc
// import, per §4.6.
type IndexFile interface {
	// Exists reports whether the backing file is present on disk at all;
	// a missing optional index (e.g. a Translation file nobody downloaded)
	// is simply skipped rather than treated as an error.
	Exists() bool

	// Size returns the backing file's size in bytes, for the generator's
	// progress reporting.
	Size() int64

	// Describe returns a human string identifying this index; short
	// selects the compact form used in one-line progress updates.
	Describe(short bool) string

	// FindInCache returns the PkgFileID this index was already registered
	// under in c, or 0 if it has not been merged into c yet.
	FindInCache(c *cache.Cache) cache.PkgFileID

	// Merge streams every record in this index into gen, reporting
	// diagnostics (corrupt stanzas, unparseable dependency fields) to
	// diags rather than aborting the whole run on one bad paragraph,
	// matching §7's Error/Warning split.
	Merge(gen *Generator, diags *errstack.Diagnostics) error
}

// SourceListEntry is one parsed line of the sources list (§6): `<type>
// [options] <uri> <suite> <components...>`. The sources-list tokenizer
// itself is an external collaborator (spec.md §1); this struct is the
// parsed *result* of one such line.
type SourceListEntry struct {
	Type       string // "deb" or "deb-src"
	URI        string
	Suite      string
	Components []string

	SignedBy          string
	Trusted           bool
	CheckValidUntil   bool
	DateMaxFuture     int64
	ValidUntilMin     int64
	ValidUntilMax     int64
	Architectures     []string
	Languages         []string
	Targets           []string
	PDiffs            bool
	ByHash            bool
}

// IsFlat reports whether Suite names a `/`-suffixed flat repository (no
// Components, no per-architecture Packages files) rather than a
// distribution name.
func (e SourceListEntry) IsFlat() bool {
	return len(e.Suite) > 0 && e.Suite[len(e.Suite)-1] == '/'
}
