package cache

import (
	"strings"

	"github.com/debcore/apt/internal/arena"
)

// hashTableSize is the fixed power-of-two size of the Group/Package hash
// tables. Real apt sizes this from the number of packages seen; we use a
// single generous constant since this cache is built once per process and
// never incrementally resized.
const hashTableSize = 1 << 14 // 16384

// Cache is the immutable (once built) in-memory image of every group,
// package, version, dependency, provides record and file descriptor known
// to a run. All cross-references are typed IDs into the slices below;
// nothing here is a pointer, so growing a slice never invalidates another
// entity's reference.
type Cache struct {
	Arena *arena.Arena

	NativeArch         string
	DeclaredArchitectures []string

	groups   []Group // index 0 unused
	packages []Package
	versions []Version
	deps     []Dependency
	provides []Provides
	relFiles []RelFile
	pkgFiles []PkgFile
	descs    []Description
	verFiles []VerFile
	descFiles []DescFile

	groupHash [hashTableSize]GroupID
	pkgHash   [hashTableSize]PkgID

	// Dirty mirrors the on-disk dirty bit in name only: nothing in this
	// package sets or reads it. Write manages the image's dirty bit through
	// Header.Dirty.
	Dirty bool
}

// New returns an empty Cache ready for building, for the given native
// architecture and the full list of architectures this cache should carry
// entries for (native first).
func New(nativeArch string, declared []string) *Cache {
	return &Cache{
		Arena:                 arena.New(),
		NativeArch:            nativeArch,
		DeclaredArchitectures: declared,
		groups:                make([]Group, 1, 256),
		packages:              make([]Package, 1, 1024),
		versions:              make([]Version, 1, 1024),
		deps:                  make([]Dependency, 1, 4096),
		provides:              make([]Provides, 1, 1024),
		relFiles:              make([]RelFile, 1, 16),
		pkgFiles:              make([]PkgFile, 1, 64),
		descs:                 make([]Description, 1, 1024),
		verFiles:              make([]VerFile, 1, 1024),
		descFiles:             make([]DescFile, 1, 1024),
	}
}

func hashName(s string) uint32 {
	// Case-insensitive FNV-1a, matching the "hashed names" invariant in
	// §4.1: two names differing only by case collide and compare equal.
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

// Group looks up an entity by ID. Callers hold IDs produced by this same
// Cache; looking one up against an unrelated Cache is a programming error.
func (c *Cache) Group(id GroupID) *Group       { return &c.groups[id] }
func (c *Cache) Package(id PkgID) *Package     { return &c.packages[id] }
func (c *Cache) Version(id VerID) *Version     { return &c.versions[id] }
func (c *Cache) Dep(id DepID) *Dependency      { return &c.deps[id] }
func (c *Cache) Provide(id ProvidesID) *Provides { return &c.provides[id] }
func (c *Cache) RelFile(id RelFileID) *RelFile { return &c.relFiles[id] }
func (c *Cache) PkgFile(id PkgFileID) *PkgFile { return &c.pkgFiles[id] }
func (c *Cache) Desc(id DescID) *Description   { return &c.descs[id] }
func (c *Cache) VerFile(id VerFileID) *VerFile { return &c.verFiles[id] }
func (c *Cache) DescFile(id DescFileID) *DescFile { return &c.descFiles[id] }

// GroupCount, PackageCount, VersionCount and DepCount give the header
// counts the on-disk image records.
func (c *Cache) GroupCount() int   { return len(c.groups) - 1 }
func (c *Cache) PackageCount() int { return len(c.packages) - 1 }
func (c *Cache) VersionCount() int { return len(c.versions) - 1 }
func (c *Cache) DepCount() int     { return len(c.deps) - 1 }

// FindGroup returns the group named name, or None (0) if no such group was
// ever created via NewGroup.
func (c *Cache) FindGroup(name string) GroupID {
	h := hashName(name) % hashTableSize
	for id := c.groupHash[h]; id != 0; id = c.groups[id].nextHash {
		if strings.EqualFold(c.Arena.String(arena.Package, c.groups[id].Name), name) {
			return id
		}
	}
	return 0
}

// FindPkg returns the package named (name, arch), or None if no package was
// inserted with that exact name (case-insensitively) and arch.
func (c *Cache) FindPkg(name, archName string) PkgID {
	h := hashName(name+":"+archName) % hashTableSize
	for id := c.pkgHash[h]; id != 0; id = c.packages[id].nextHash {
		p := &c.packages[id]
		if strings.EqualFold(c.Arena.String(arena.Package, p.Name), name) &&
			c.Arena.String(arena.Mixed, p.Arch) == archName {
			return id
		}
	}
	return 0
}

// NewGroup finds or creates the group named name.
func (c *Cache) NewGroup(name string) GroupID {
	if id := c.FindGroup(name); id != 0 {
		return id
	}
	id := GroupID(len(c.groups))
	nameID := c.Arena.Intern(arena.Package, name)
	h := hashName(name) % hashTableSize
	c.groups = append(c.groups, Group{Name: nameID, nextHash: c.groupHash[h]})
	c.groupHash[h] = id
	return id
}

// NewPackage finds or creates the (name, arch) package and adds it to its
// group. It installs no relations itself; the implicit multi-arch relations
// (§4.1) are added per version by AddImplicitMultiArch.
func (c *Cache) NewPackage(name, archName string) PkgID {
	if id := c.FindPkg(name, archName); id != 0 {
		return id
	}

	grpID := c.NewGroup(name)
	archID := c.Arena.Intern(arena.Mixed, archName)
	nameID := c.Arena.Intern(arena.Package, name)

	id := PkgID(len(c.packages))
	h := hashName(name+":"+archName) % hashTableSize
	c.packages = append(c.packages, Package{
		Group:    grpID,
		Name:     nameID,
		Arch:     archID,
		nextHash: c.pkgHash[h],
	})
	c.pkgHash[h] = id

	grp := &c.groups[grpID]
	grp.Packages = append(grp.Packages, id)

	return id
}

// NewVersion creates a new Version of pkg for verStr, inserted into
// Package.Versions in descending-version order per §3. Ties (equal version
// strings) are only ever the same entry: callers resolve a control-hash
// collision before calling NewVersion a second time for the same string.
func (c *Cache) NewVersion(pkg PkgID, verStr string, cmp VersionComparator) VerID {
	verID := c.Arena.Intern(arena.Version, verStr)
	id := VerID(len(c.versions))
	c.versions = append(c.versions, Version{Pkg: pkg, VerStr: verID})

	p := &c.packages[pkg]
	// Insertion sort into descending order; package version lists are
	// small enough in practice (tens of entries) that this beats sorting
	// the whole list on every insert.
	i := 0
	for i < len(p.Versions) {
		other := c.versions[p.Versions[i]].VerStr
		if cmp(verStr, c.Arena.String(arena.Version, other)) >= 0 {
			break
		}
		i++
	}
	p.Versions = append(p.Versions, 0)
	copy(p.Versions[i+1:], p.Versions[i:])
	p.Versions[i] = id

	return id
}

// VersionComparator orders two version strings the way dpkg does: <0 if a
// precedes b, 0 if equal, >0 if a follows b. The cache is agnostic to the
// exact algorithm so that callers can inject the real dpkg comparator
// (internal/policy wires pault.ag/go/debian/version) without this package
// importing it directly and creating an import cycle with the solver.
type VersionComparator func(a, b string) int

// NewDepends appends a dependency record to ver's Depends list and to the
// target package's reverse-depends list, looking the target group up by
// name and creating the group with NewGroup if it does not exist yet. No
// Package is created for the target: a name that no stanza declares stays
// a group with no packages (purely virtual, per §3).
func (c *Cache) NewDepends(ver VerID, targetName, targetArch string, op CompOp, constraintVer string, kind DepKind, or bool) DepID {
	id := DepID(len(c.deps))

	var archID arena.ID
	if targetArch != "" {
		archID = c.Arena.Intern(arena.Mixed, targetArch)
	}
	var cVerID arena.ID
	if op != CompNone {
		cVerID = c.Arena.Intern(arena.Version, constraintVer)
	}

	targetGroup := c.NewGroup(targetName)

	c.deps = append(c.deps, Dependency{
		Parent:        ver,
		TargetPkg:     targetGroup,
		TargetName:    c.Arena.Intern(arena.Package, targetName),
		TargetArch:    archID,
		Constraint:    op,
		ConstraintVer: cVerID,
		Kind:          kind,
		Or:            or,
	})

	c.versions[ver].Depends = append(c.versions[ver].Depends, id)

	// Install reverse-depends against every package in the target group
	// that matches the (possibly empty/any) requested arch; an
	// arch-qualified dependency only reverses onto that one arch.
	grp := &c.groups[targetGroup]
	for _, pkgID := range grp.Packages {
		if targetArch != "" && c.Arena.String(arena.Mixed, c.packages[pkgID].Arch) != targetArch {
			continue
		}
		c.packages[pkgID].ReverseDepend = append(c.packages[pkgID].ReverseDepend, id)
	}

	return id
}

// NewProvides appends a provides record from ver toward targetName, and
// links it onto the target package(s) so that solver candidate search over
// "who provides X" is O(providers) rather than a full version scan.
func (c *Cache) NewProvides(ver VerID, targetName, provideVer string, flags ProvidesFlag) ProvidesID {
	id := ProvidesID(len(c.provides))

	var pv arena.ID
	if provideVer != "" {
		pv = c.Arena.Intern(arena.Version, provideVer)
	}

	c.provides = append(c.provides, Provides{
		Version:    ver,
		TargetName: c.Arena.Intern(arena.Package, targetName),
		ProvideVer: pv,
		Flags:      flags,
	})

	c.versions[ver].Provides = append(c.versions[ver].Provides, id)

	targetGroup := c.NewGroup(targetName)
	for _, pkgID := range c.groups[targetGroup].Packages {
		c.packages[pkgID].Provides = append(c.packages[pkgID].Provides, id)
	}

	return id
}

// NewReleaseFile registers a Release file descriptor.
func (c *Cache) NewReleaseFile(site, archive, codename, version, origin, label string, trusted bool) RelFileID {
	id := RelFileID(len(c.relFiles))
	c.relFiles = append(c.relFiles, RelFile{
		Site:     c.Arena.Intern(arena.Mixed, site),
		Archive:  c.Arena.Intern(arena.Mixed, archive),
		Codename: c.Arena.Intern(arena.Mixed, codename),
		Version:  c.Arena.Intern(arena.Mixed, version),
		Origin:   c.Arena.Intern(arena.Mixed, origin),
		Label:    c.Arena.Intern(arena.Mixed, label),
		Trusted:  trusted,
	})
	return id
}

// NewPackageFile registers a Package/Sources index file descriptor linked
// to rel (RelFileID(0) for locally-provided files, e.g. the dpkg status
// file or a bare .deb).
func (c *Cache) NewPackageFile(rel RelFileID, filename, component, archName, indexType string, mtime, size int64) PkgFileID {
	id := PkgFileID(len(c.pkgFiles))
	c.pkgFiles = append(c.pkgFiles, PkgFile{
		RelFile:   rel,
		Filename:  c.Arena.Intern(arena.Mixed, filename),
		Component: c.Arena.Intern(arena.Mixed, component),
		Arch:      c.Arena.Intern(arena.Mixed, archName),
		MTime:     mtime,
		Size:      size,
		IndexType: c.Arena.Intern(arena.Mixed, indexType),
	})
	return id
}

// NewFileVer binds ver to file (a version may appear in more than one
// index file, e.g. both main and a by-hash snapshot).
func (c *Cache) NewFileVer(ver VerID, file PkgFileID) VerFileID {
	id := VerFileID(len(c.verFiles))
	c.verFiles = append(c.verFiles, VerFile{Ver: ver, File: file})
	c.versions[ver].Files = append(c.versions[ver].Files, id)
	return id
}

// NewDescription finds or creates the description for (lang, md5); per §3
// descriptions are shared across versions with an identical md5.
func (c *Cache) NewDescription(lang string, md5 [16]byte) DescID {
	langID := c.Arena.Intern(arena.Mixed, lang)
	for i := 1; i < len(c.descs); i++ {
		if c.descs[i].Language == langID && c.descs[i].MD5 == md5 {
			return DescID(i)
		}
	}
	id := DescID(len(c.descs))
	c.descs = append(c.descs, Description{Language: langID, MD5: md5})
	return id
}

// NewFileDesc binds desc to file.
func (c *Cache) NewFileDesc(desc DescID, file PkgFileID) DescFileID {
	id := DescFileID(len(c.descFiles))
	c.descFiles = append(c.descFiles, DescFile{Desc: desc, File: file})
	c.descs[desc].Files = append(c.descs[desc].Files, id)
	return id
}
