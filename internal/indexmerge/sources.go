package indexmerge

import (
	"io"
	"os"

	"pault.ag/go/debian/control"
	"pault.ag/go/debian/dependency"

	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
)

// sourceStanza mirrors one Sources-file paragraph, per
// _examples/paultag-go-archive/sources.go's Source struct: "Source" is
// renamed "Package", plus the mandatory Directory/Files fields a build-dep
// fetch plan needs to locate and verify the .dsc/.tar components.
type sourceStanza struct {
	control.Paragraph

	Package   string `required:"true"`
	Version   string `required:"true"`
	Directory string `required:"true"`
	Priority  string
	Section   string

	Binaries      []string `control:"Binary" delim:","`
	Architectures []string `control:"Architecture"`

	BuildDepends      dependency.Dependency `control:"Build-Depends"`
	BuildDependsIndep dependency.Dependency `control:"Build-Depends-Indep"`
	BuildDependsArch  dependency.Dependency `control:"Build-Depends-Arch"`

	Files []control.MD5FileHash `control:"Files" delim:"\n" strip:"\n\r\t "`
}

// SourceRecord is the subset of a Sources-file stanza internal/planner needs
// to build a source-fetch or build-dep plan (§4.8's share of the download
// plan table), kept outside the binary cache.Cache entirely: the cache's
// Package/Version tables model installable binary candidates, and a source
// package is neither.
type SourceRecord struct {
	Package   string
	Version   string
	Directory string
	Binaries  []string

	BuildDepends      dependency.Dependency
	BuildDependsIndep dependency.Dependency
	BuildDependsArch  dependency.Dependency

	// Files lists each component (the .dsc, the orig tarball, the debian
	// tarball/diff) by name relative to Directory, with its MD5 for
	// Acquire's checksum verification.
	Files []SourceFile
}

// SourceFile is one file belonging to a SourceRecord.
type SourceFile struct {
	Name string
	Size int64
	MD5  string
}

// SourcesFile is an IndexFile producer for one component's Sources index.
// It does not touch cache.Cache's Package/Version tables; it appends a
// SourceRecord to gen.Sources for internal/planner to consume directly.
type SourcesFile struct {
	Path      string
	RelFile   cache.RelFileID
	Component string

	registry *RegisteredPkgFiles
}

// NewSourcesFile returns a producer for the Sources file at path.
func NewSourcesFile(path string, rel cache.RelFileID, component string, registry *RegisteredPkgFiles) *SourcesFile {
	return &SourcesFile{Path: path, RelFile: rel, Component: component, registry: registry}
}

func (f *SourcesFile) Exists() bool {
	_, ok := statSize(f.Path)
	return ok
}

func (f *SourcesFile) Size() int64 {
	size, _ := statSize(f.Path)
	return size
}

func (f *SourcesFile) Describe(short bool) string {
	return describePath("Sources ("+f.Component+")", f.Path, short)
}

func (f *SourcesFile) FindInCache(c *cache.Cache) cache.PkgFileID {
	if f.registry == nil {
		return 0
	}
	return f.registry.Find(f.Path)
}

func (f *SourcesFile) Merge(gen *Generator, diags *errstack.Diagnostics) error {
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
	pkgFileID := gen.Cache.NewPackageFile(f.RelFile, f.Path, f.Component, "source", "Sources", mtime, size)
	gen.Cache.PkgFile(pkgFileID).NotSource = true
	if f.registry != nil {
		f.registry.Register(f.Path, pkgFileID)
	}

	dec, err := control.NewDecoder(r, nil)
	if err != nil {
		return err
	}

	for {
		var s sourceStanza
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				break
			}
			diags.Wrap(errstack.Warning, err, "skipping malformed stanza in %s", f.Path)
			continue
		}

		rec := SourceRecord{
			Package:           s.Package,
			Version:           s.Version,
			Directory:         s.Directory,
			Binaries:          s.Binaries,
			BuildDepends:      s.BuildDepends,
			BuildDependsIndep: s.BuildDependsIndep,
			BuildDependsArch:  s.BuildDependsArch,
		}
		for _, fh := range s.Files {
			rec.Files = append(rec.Files, SourceFile{Name: fh.Filename, Size: fh.Size, MD5: fh.Hash})
		}
		gen.Sources = append(gen.Sources, rec)
	}
	return nil
}
