package cache

import "github.com/debcore/apt/internal/arena"

// AddImplicitMultiArch installs the implicit inter-architecture relations
// described in §4.1 for ver, against every sibling architecture already
// present in ver's group. It must be called after ver's MultiArch field has
// been set and after NewDepends/NewProvides would normally run for its
// declared relations, since it appends further Dependency/Provides records
// exactly like any other control-stanza-derived relation.
//
//   - multi-arch=same      -> Breaks pkg:other (!= version), Replaces pkg:other (<< version)
//   - otherwise            -> Conflicts pkg:other
//   - multi-arch=foreign/allowed, when this is a provider -> auto-provide toward the native sibling
//
// Two packages within one group are co-installable iff both carry
// multi-arch=same with equal version strings (the invariant in §3); this is
// exactly what the Breaks(!=)/Replaces(<<) pair below encodes, since
// neither rule fires when the versions match.
func (c *Cache) AddImplicitMultiArch(ver VerID) {
	v := &c.versions[ver]
	pkg := &c.packages[v.Pkg]
	grp := &c.groups[pkg.Group]
	selfName := c.Arena.String(arena.Package, pkg.Name)
	verStr := c.Arena.String(arena.Version, v.VerStr)

	for _, siblingID := range grp.Packages {
		if siblingID == v.Pkg {
			continue
		}
		sibling := &c.packages[siblingID]
		siblingArch := c.Arena.String(arena.Mixed, sibling.Arch)

		switch v.MultiArch {
		case MultiArchSame:
			c.NewDepends(ver, selfName, siblingArch, CompNotEqual, verStr, Breaks, false)
			c.NewDepends(ver, selfName, siblingArch, CompLess, verStr, Replaces, false)
		default:
			c.NewDepends(ver, selfName, siblingArch, CompNone, "", Conflicts, false)
		}

		if (v.MultiArch == MultiArchForeign || v.MultiArch == MultiArchAllowed) && siblingArch == c.NativeArch {
			c.NewProvides(ver, selfName, verStr, ProvidesMultiArchImplicit)
		}
	}
}
