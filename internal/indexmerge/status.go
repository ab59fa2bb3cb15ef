package indexmerge

import (
	"crypto/md5"
	"io"
	"os"
	"strings"

	"pault.ag/go/debian/control"
	"pault.ag/go/debian/dependency"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
)

// statusStanza mirrors one /var/lib/dpkg/status paragraph: the same fields
// as a Packages-file entry, minus the archive-only Filename/Size/hash
// fields, plus dpkg's own Status triple ("want flag status", e.g. "install
// ok installed").
type statusStanza struct {
	control.Paragraph

	Package      string `required:"true"`
	Version      string `required:"true"`
	Architecture string `required:"true"`
	Status       string `required:"true"`
	Section      string
	Priority     string
	Essential    string
	MultiArch    string `control:"Multi-Arch"`
	Description  string

	Depends    dependency.Dependency
	PreDepends dependency.Dependency `control:"Pre-Depends"`
	Recommends dependency.Dependency
	Suggests   dependency.Dependency
	Enhances   dependency.Dependency
	Conflicts  dependency.Dependency
	Breaks     dependency.Dependency
	Replaces   dependency.Dependency
	Provides   dependency.Dependency
}

// wantFlag and stateWord return the first and third words of dpkg's
// Status field ("install ok installed"): the selection (e.g. "purge") and
// the package state (e.g. "installed", "config-files").
func (s statusStanza) wantFlag() string  { return statusWord(s.Status, 0) }
func (s statusStanza) stateWord() string { return statusWord(s.Status, 2) }

func statusWord(status string, i int) string {
	fields := strings.Fields(status)
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

// installed reports whether dpkg considers this stanza's version currently
// on disk, the condition that sets Package.CurrentVer: "installed" and
// "config-files" both leave real package state behind (config-files keeps
// conffiles after a remove), but only "installed" is a candidate for
// CurrentVer, matching apt's own CURSTATE handling.
func (s statusStanza) installed() bool {
	return s.stateWord() == "installed"
}

// StatusFile is an IndexFile producer for the dpkg status database (§4.6's
// "dpkg status-file producer"): it sets Package.CurrentVer and the
// Essential/Important flags the autoremove root set and policy pinning
// consult, per §4.3/§4.4.
type StatusFile struct {
	Path string

	registry *RegisteredPkgFiles
}

// NewStatusFile returns a producer for the dpkg status file at path.
func NewStatusFile(path string, registry *RegisteredPkgFiles) *StatusFile {
	return &StatusFile{Path: path, registry: registry}
}

func (f *StatusFile) Exists() bool {
	_, ok := statSize(f.Path)
	return ok
}

func (f *StatusFile) Size() int64 {
	size, _ := statSize(f.Path)
	return size
}

func (f *StatusFile) Describe(short bool) string {
	return describePath("dpkg status", f.Path, short)
}

func (f *StatusFile) FindInCache(c *cache.Cache) cache.PkgFileID {
	if f.registry == nil {
		return 0
	}
	return f.registry.Find(f.Path)
}

func (f *StatusFile) Merge(gen *Generator, diags *errstack.Diagnostics) error {
	raw, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer raw.Close()

	mtime, size := statOrZero(f.Path)
	// RelFileID(0): the status file is locally-provided, per §4.1's PkgFile
	// description.
	pkgFileID := gen.Cache.NewPackageFile(RegisterLocalFile(), f.Path, "", "", "Status", mtime, size)
	if f.registry != nil {
		f.registry.Register(f.Path, pkgFileID)
	}

	dec, err := control.NewDecoder(raw, nil)
	if err != nil {
		return err
	}

	for {
		var s statusStanza
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				break
			}
			diags.Wrap(errstack.Warning, err, "skipping malformed stanza in %s", f.Path)
			continue
		}
		f.mergeStanza(gen, pkgFileID, &s, diags)
	}
	return nil
}

func (f *StatusFile) mergeStanza(gen *Generator, pkgFileID cache.PkgFileID, s *statusStanza, diags *errstack.Diagnostics) {
	if s.wantFlag() == "purge" && s.stateWord() != "installed" {
		// A purged package that is not installed leaves nothing in the
		// cache: no Package or Version is created for its stanza.
		return
	}

	pkgID := gen.Cache.NewPackage(s.Package, s.Architecture)
	hash := statusHash(s)
	verID := gen.FindOrNewVersion(pkgID, s.Version, hash, diags)

	v := gen.Cache.Version(verID)
	v.Priority = priorityFromString(s.Priority)
	v.MultiArch = multiArchFromString(s.MultiArch)
	v.Section = gen.Cache.Arena.Intern(arena.Section, s.Section)
	v.Essential = strings.EqualFold(s.Essential, "yes")
	v.Important = v.Priority >= cache.PriorityImportant

	gen.Cache.NewFileVer(verID, pkgFileID)

	addRelations(gen, verID, s.Depends, cache.Depends)
	addRelations(gen, verID, s.PreDepends, cache.PreDepends)
	addRelations(gen, verID, s.Recommends, cache.Recommends)
	addRelations(gen, verID, s.Suggests, cache.Suggests)
	addRelations(gen, verID, s.Enhances, cache.Enhances)
	addRelations(gen, verID, s.Conflicts, cache.Conflicts)
	addRelations(gen, verID, s.Breaks, cache.Breaks)
	addRelations(gen, verID, s.Replaces, cache.Replaces)
	addProvides(gen, verID, s.Provides)

	if s.Description != "" {
		md5sum := md5.Sum([]byte(s.Description))
		descID := gen.Cache.NewDescription("", md5sum)
		v.Descriptions = append(v.Descriptions, descID)
		gen.Cache.NewFileDesc(descID, pkgFileID)
	}

	gen.Cache.AddImplicitMultiArch(verID)

	if s.installed() {
		gen.Cache.Package(pkgID).CurrentVer = verID
	}
}

func statusHash(s *statusStanza) uint64 {
	h := md5.New()
	io.WriteString(h, s.Package)
	io.WriteString(h, s.Version)
	io.WriteString(h, s.Architecture)
	io.WriteString(h, s.Status)
	io.WriteString(h, s.Depends.String())
	sum := h.Sum(nil)
	return uint64(sum[0])<<56 | uint64(sum[1])<<48 | uint64(sum[2])<<40 | uint64(sum[3])<<32 |
		uint64(sum[4])<<24 | uint64(sum[5])<<16 | uint64(sum[6])<<8 | uint64(sum[7])
}
