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

// packageStanza mirrors one Packages-file paragraph, per
// _examples/paultag-go-archive/packages.go's Package struct: the same field
// set, minus the SHA1/SHA256 split into a slice (this cache only stores the
// archive-reported sizes and hashes it needs for Acquire's checksum
// verification, not a full hash family).
type packageStanza struct {
	control.Paragraph

	Package       string `required:"true"`
	Source        string
	Version       string `required:"true"`
	Architecture  string `required:"true"`
	Section       string
	Priority      string
	Essential     string
	MultiArch     string `control:"Multi-Arch"`
	InstalledSize int64  `control:"Installed-Size"`

	Depends    dependency.Dependency
	PreDepends dependency.Dependency `control:"Pre-Depends"`
	Recommends dependency.Dependency
	Suggests   dependency.Dependency
	Enhances   dependency.Dependency
	Conflicts  dependency.Dependency
	Breaks     dependency.Dependency
	Replaces   dependency.Dependency
	Provides   dependency.Dependency

	Filename       string `required:"true"`
	Size           int64  `required:"true"`
	MD5sum         string
	SHA256         string
	Description    string
	DescriptionMD5 string `control:"Description-md5"`
}

// PackagesFile is an IndexFile producer for one architecture's Packages
// index belonging to one repository component, per §4.6 steps (b)/(c):
// "Package file registration linked to that Release" and the per-record
// NewPackage/NewVersion/NewFileVer/NewDepends/NewProvides/NewDescription/
// NewFileDesc calls.
type PackagesFile struct {
	Path      string
	RelFile   cache.RelFileID
	Component string
	Arch      string
	NotSource bool

	registry *RegisteredPkgFiles
}

// NewPackagesFile returns a producer for the Packages file at path,
// registering PkgFile entries into registry so later IndexFiles (a
// Translation file for the same component/arch) can find it again via
// FindInCache.
func NewPackagesFile(path string, rel cache.RelFileID, component, arch string, registry *RegisteredPkgFiles) *PackagesFile {
	return &PackagesFile{Path: path, RelFile: rel, Component: component, Arch: arch, registry: registry}
}

func (f *PackagesFile) Exists() bool {
	_, ok := statSize(f.Path)
	return ok
}

func (f *PackagesFile) Size() int64 {
	size, _ := statSize(f.Path)
	return size
}

func (f *PackagesFile) Describe(short bool) string {
	return describePath("Packages ("+f.Component+"/binary-"+f.Arch+")", f.Path, short)
}

func (f *PackagesFile) FindInCache(c *cache.Cache) cache.PkgFileID {
	if f.registry == nil {
		return 0
	}
	return f.registry.Find(f.Path)
}

// Merge decompresses f.Path, registers it as a PkgFile under f.RelFile, and
// decodes every stanza into the cache.
func (f *PackagesFile) Merge(gen *Generator, diags *errstack.Diagnostics) error {
	raw, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer raw.Close()

	r, err := Decompress(f.Path, raw)
	if err != nil {
		return err
	}
	defer r.Close()

	mtime, size := statOrZero(f.Path)
	pkgFileID := gen.Cache.NewPackageFile(f.RelFile, f.Path, f.Component, f.Arch, "Packages", mtime, size)
	if f.registry != nil {
		f.registry.Register(f.Path, pkgFileID)
	}

	dec, err := control.NewDecoder(r, nil)
	if err != nil {
		return err
	}

	for {
		var stanza packageStanza
		if err := dec.Decode(&stanza); err != nil {
			if err == io.EOF {
				break
			}
			diags.Wrap(errstack.Warning, err, "skipping malformed stanza in %s", f.Path)
			continue
		}
		f.mergeStanza(gen, pkgFileID, &stanza, diags)
	}
	return nil
}

func (f *PackagesFile) mergeStanza(gen *Generator, pkgFileID cache.PkgFileID, s *packageStanza, diags *errstack.Diagnostics) {
	arch := s.Architecture
	if arch == "" {
		arch = f.Arch
	}

	pkgID := gen.Cache.NewPackage(s.Package, arch)
	hash := controlHash(s)
	verID := gen.FindOrNewVersion(pkgID, s.Version, hash, diags)

	v := gen.Cache.Version(verID)
	v.SourcePkg = sourcePkgName(gen, s)
	v.Priority = priorityFromString(s.Priority)
	v.MultiArch = multiArchFromString(s.MultiArch)
	v.Section = gen.Cache.Arena.Intern(arena.Section, s.Section)
	v.InstalledSize = uint64(s.InstalledSize)
	v.DownloadSize = uint64(s.Size)
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

	if s.Filename != "" {
		gen.RegisterDebFile(verID, DebFile{
			Filename: s.Filename,
			Size:     s.Size,
			MD5:      s.MD5sum,
			SHA256:   s.SHA256,
		})
	}

	gen.Cache.AddImplicitMultiArch(verID)
}

// controlHash identifies a stanza for the §3 control-hash dedupe rule: any
// stable digest of the fields that determine solver-visible behavior is
// sufficient, since this is only ever compared for exact equality against
// another decode of the same bytes.
func controlHash(s *packageStanza) uint64 {
	h := md5.New()
	io.WriteString(h, s.Package)
	io.WriteString(h, s.Version)
	io.WriteString(h, s.Architecture)
	io.WriteString(h, s.Depends.String())
	io.WriteString(h, s.PreDepends.String())
	io.WriteString(h, s.Provides.String())
	io.WriteString(h, s.Filename)
	sum := h.Sum(nil)
	return uint64(sum[0])<<56 | uint64(sum[1])<<48 | uint64(sum[2])<<40 | uint64(sum[3])<<32 |
		uint64(sum[4])<<24 | uint64(sum[5])<<16 | uint64(sum[6])<<8 | uint64(sum[7])
}

func sourcePkgName(gen *Generator, s *packageStanza) arena.ID {
	name := s.Source
	if name == "" {
		name = s.Package
	}
	// A "Source: foo (1.2-3)" line carries the source version in
	// parens when it differs from the binary version; strip it, since
	// that version belongs in Version.SourceVer instead.
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return gen.Cache.Arena.Intern(arena.Mixed, name)
}

func addRelations(gen *Generator, ver cache.VerID, dep dependency.Dependency, kind cache.DepKind) {
	for _, rel := range dep.Relations {
		for i, poss := range rel.Possibilities {
			archName := ""
			if poss.Arch != nil {
				archName = poss.Arch.String()
			}
			op, verStr := cache.CompNone, ""
			if poss.Version != nil {
				op = compOpFromString(poss.Version.Operator)
				verStr = poss.Version.Version.String()
			}
			if strings.HasPrefix(poss.Name, "/") {
				gen.AddFileDependency(ver, poss.Name)
				continue
			}
			or := i < len(rel.Possibilities)-1
			gen.Cache.NewDepends(ver, poss.Name, archName, op, verStr, kind, or)
		}
	}
}

func addProvides(gen *Generator, ver cache.VerID, dep dependency.Dependency) {
	for _, rel := range dep.Relations {
		for _, poss := range rel.Possibilities {
			verStr := ""
			if poss.Version != nil {
				verStr = poss.Version.Version.String()
			}
			gen.Cache.NewProvides(ver, poss.Name, verStr, cache.ProvidesExplicit)
		}
	}
}

func compOpFromString(op string) cache.CompOp {
	switch op {
	case "<<":
		return cache.CompLess
	case "<=":
		return cache.CompLessEq
	case "=":
		return cache.CompEq
	case ">=":
		return cache.CompGreaterEq
	case ">>":
		return cache.CompGreater
	default:
		return cache.CompNone
	}
}

func priorityFromString(s string) uint8 {
	switch strings.ToLower(s) {
	case "required":
		return cache.PriorityRequired
	case "important":
		return cache.PriorityImportant
	case "standard":
		return cache.PriorityStandard
	case "optional":
		return cache.PriorityOptional
	default:
		return cache.PriorityExtra
	}
}

func multiArchFromString(s string) cache.MultiArch {
	switch strings.ToLower(s) {
	case "same":
		return cache.MultiArchSame
	case "foreign":
		return cache.MultiArchForeign
	case "allowed":
		return cache.MultiArchAllowed
	default:
		return cache.MultiArchNone
	}
}
