package depcache

import (
	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
)

// CompareProviders orders two candidate versions that could satisfy a
// dependency whose target package is target, implementing the provider
// comparator of §4.2. It returns a negative number if a should be
// preferred over b, and a positive number if b should be preferred. When
// rules (a)-(g) cannot distinguish them, rule (h) prefers the lower
// version id, i.e. declaration order, per the open question in spec.md §9
// about insertion-order tie-breaks between providers from different source
// packages; 0 is returned only when a == b.
func (dc *DepCache) CompareProviders(target cache.PkgID, a, b cache.VerID) int {
	c := dc.Cache
	av, bv := c.Version(a), c.Version(b)
	apkg, bpkg := c.Package(av.Pkg), c.Package(bv.Pkg)
	targetPkg := c.Package(target)

	// (a) sibling of its own group already installed, under multi-arch=same.
	if rank := boolRank(dc.siblingInstalled(apkg, av)) - boolRank(dc.siblingInstalled(bpkg, bv)); rank != 0 {
		return -rank
	}

	// (b) currently installed.
	if rank := boolRank(apkg.CurrentVer == a) - boolRank(bpkg.CurrentVer == b); rank != 0 {
		return -rank
	}

	// (c) in the target's group.
	if rank := boolRank(apkg.Group == targetPkg.Group) - boolRank(bpkg.Group == targetPkg.Group); rank != 0 {
		return -rank
	}

	// (d) essential.
	if rank := boolRank(av.Essential) - boolRank(bv.Essential); rank != 0 {
		return -rank
	}

	// (e) important.
	if rank := boolRank(av.Priority >= cache.PriorityImportant) - boolRank(bv.Priority >= cache.PriorityImportant); rank != 0 {
		return -rank
	}

	// (f) native architecture, then declared-architecture order.
	if rank := dc.archRank(apkg.Arch) - dc.archRank(bpkg.Arch); rank != 0 {
		return rank
	}

	// (g) higher priority.
	if av.Priority != bv.Priority {
		return int(bv.Priority) - int(av.Priority)
	}

	// (h) lower internal id.
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareProvidersUpgrade is the expanded provider comparator §4.2's
// closing sentence and §4.4's "Obsolete detection" subsection call for: the
// solver consults it instead of the plain CompareProviders while resolving
// an upgrade, so an obsolete candidate never outranks a live alternative
// regardless of how the rest of the rule set would have ordered them.
func (dc *DepCache) CompareProvidersUpgrade(target cache.PkgID, a, b cache.VerID) int {
	if rank := boolRank(dc.IsObsolete(a)) - boolRank(dc.IsObsolete(b)); rank != 0 {
		return rank
	}
	return dc.CompareProviders(target, a, b)
}

// IsObsolete reports whether ver counts as obsolete for upgrade purposes:
// its source package has a sibling binary built from a strictly greater
// source version (the old binary's source has moved on without it), or ver
// itself carries no file that isn't NotSource, i.e. nothing is actually
// installable from it.
func (dc *DepCache) IsObsolete(ver cache.VerID) bool {
	c := dc.Cache
	v := c.Version(ver)

	hasInstallableFile := false
	for _, vfID := range v.Files {
		pf := c.PkgFile(c.VerFile(vfID).File)
		if !pf.NotSource {
			hasInstallableFile = true
			break
		}
	}
	if !hasInstallableFile {
		return true
	}

	if v.SourcePkg == 0 {
		return false
	}
	mySourceVer := c.Arena.String(arena.Mixed, v.SourceVer)
	for id := 1; id <= c.VersionCount(); id++ {
		other := c.Version(cache.VerID(id))
		if other.SourcePkg != v.SourcePkg || cache.VerID(id) == ver {
			continue
		}
		otherSourceVer := c.Arena.String(arena.Mixed, other.SourceVer)
		if dc.Compare(otherSourceVer, mySourceVer) > 0 {
			return true
		}
	}
	return false
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// siblingInstalled reports whether pkg's group has a sibling package (same
// group, different arch) with a currently installed version, while ver
// carries multi-arch=same. This is rule (a).
func (dc *DepCache) siblingInstalled(pkg *cache.Package, ver *cache.Version) bool {
	if ver.MultiArch != cache.MultiArchSame {
		return false
	}
	grp := dc.Cache.Group(pkg.Group)
	for _, sibID := range grp.Packages {
		sib := dc.Cache.Package(sibID)
		if sib == pkg {
			continue
		}
		if sib.CurrentVer != 0 {
			return true
		}
	}
	return false
}

// archRank returns a lower value for more-preferred architectures: 0 for
// native, then position+1 in DeclaredArchitectures, then a large value for
// anything undeclared.
func (dc *DepCache) archRank(archID arena.ID) int {
	c := dc.Cache
	archName := c.Arena.String(arena.Mixed, archID)
	if archName == c.NativeArch {
		return 0
	}
	for i, a := range c.DeclaredArchitectures {
		if a == archName {
			return i + 1
		}
	}
	return len(c.DeclaredArchitectures) + 1
}
