package depcache

import (
	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
)

// Update recomputes every per-dependency rollup bit and rolls it up to the
// per-package install-broken bit, per §4.2. It is the only place that
// interprets a Dependency record's version constraint against a concrete
// target version string.
func (dc *DepCache) Update() {
	for i := range dc.deps {
		dc.deps[i] = DepState{}
	}
	for id := 1; id <= dc.Cache.PackageCount(); id++ {
		dc.pkgs[id].InstallBroken = false
	}

	for id := 1; id <= dc.Cache.DepCount(); id++ {
		dep := cache.DepID(id)
		d := dc.Cache.Dep(dep)

		nowOK := dc.satisfiedBy(d, targetNow)
		installOK := dc.satisfiedBy(d, targetInstall)
		cverOK := dc.satisfiedBy(d, targetCandidate)

		// "Min" severity only ever considers critical kinds: it is the bit
		// that can make a package install-broken. "Policy" severity widens
		// that to anything the Policy layer currently treats as important
		// (Recommends/Suggests when configured), per §4.3 IsImportantDep.
		var bits DepState
		if d.Kind.Critical() {
			bits.Rollup |= boolBit(nowOK, DepNowMin) | boolBit(installOK, DepInstallMin) | boolBit(cverOK, DepCVerMin)
		}
		if d.Kind.Critical() || dc.Policy.IsImportantDep(dep) {
			bits.Rollup |= boolBit(nowOK, DepNowPolicy) | boolBit(installOK, DepInstallPolicy) | boolBit(cverOK, DepCVerPolicy)
		}
		dc.deps[id] = bits
	}

	// Roll dependency state up to each version's owning package: a package
	// whose planned InstallVer has any unmet critical dependency (after
	// OR-group carry is accounted for) is install-broken.
	for id := 1; id <= dc.Cache.PackageCount(); id++ {
		pkg := cache.PkgID(id)
		state := dc.State(pkg)
		if state.Mode != Install || state.InstallVer == 0 {
			continue
		}
		state.InstallBroken = dc.versionBroken(state.InstallVer)
	}
}

// versionBroken reports whether any critical, non-OR-satisfied dependency
// of ver is unmet under the "Install" (post-transaction) view.
func (dc *DepCache) versionBroken(ver cache.VerID) bool {
	depIDs := dc.Cache.Version(ver).Depends
	for i := 0; i < len(depIDs); i++ {
		groupSatisfied := dc.deps[depIDs[i]].Rollup&DepInstallMin != 0
		kind := dc.Cache.Dep(depIDs[i]).Kind
		j := i
		for dc.Cache.Dep(depIDs[j]).Or {
			j++
			if dc.deps[depIDs[j]].Rollup&DepInstallMin != 0 {
				groupSatisfied = true
			}
		}
		if kind.Critical() && !kind.Negative() && !groupSatisfied {
			return true
		}
		i = j
	}
	return false
}

type targetView int

const (
	targetNow targetView = iota
	targetInstall
	targetCandidate
)

// satisfiedBy reports whether dependency d is satisfied under the given
// view of the world: the target package's CurrentVer/InstallVer/CandidateVer
// (or, for a negative kind, the absence of a conflicting one), considering
// both a direct version match and anything that provides the target name.
func (dc *DepCache) satisfiedBy(d *cache.Dependency, view targetView) bool {
	c := dc.Cache
	targetName := c.Arena.String(arena.Package, d.TargetName)
	var archFilter string
	if d.TargetArch != 0 {
		archFilter = c.Arena.String(arena.Mixed, d.TargetArch)
	}

	grpID := c.FindGroup(targetName)
	if grpID == 0 {
		return d.Kind.Negative() // nothing named this exists; negative kinds are trivially satisfied
	}
	grp := c.Group(grpID)

	satisfiedDirect := false
	anyPresent := false
	for _, pkgID := range grp.Packages {
		p := c.Package(pkgID)
		if archFilter != "" && c.Arena.String(arena.Mixed, p.Arch) != archFilter {
			continue
		}
		ver := dc.viewVersion(pkgID, view)
		if ver == 0 {
			continue
		}
		anyPresent = true
		if dc.versionMeetsConstraint(ver, d) {
			satisfiedDirect = true
		}
	}

	if d.Kind.Negative() {
		// A negative kind (Conflicts/Breaks/Obsoletes) is "satisfied" (no
		// problem) when nothing matching the constraint is present.
		return !satisfiedDirect
	}
	if satisfiedDirect {
		return true
	}
	if anyPresent {
		return false
	}

	// Fall back to provides: any version providing targetName (optionally
	// at ProvideVer) under this view counts.
	return dc.satisfiedByProvides(grpID, d, view)
}

func boolBit(b bool, bit DepRollupBit) DepRollupBit {
	if b {
		return bit
	}
	return 0
}

func (dc *DepCache) viewVersion(pkgID cache.PkgID, view targetView) cache.VerID {
	switch view {
	case targetNow:
		return dc.Cache.Package(pkgID).CurrentVer
	case targetInstall:
		return dc.State(pkgID).InstallVer
	default:
		return dc.State(pkgID).CandidateVer
	}
}

func (dc *DepCache) versionMeetsConstraint(ver cache.VerID, d *cache.Dependency) bool {
	if d.Constraint == cache.CompNone {
		return true
	}
	verStr := dc.Cache.Arena.String(arena.Version, dc.Cache.Version(ver).VerStr)
	constraintStr := dc.Cache.Arena.String(arena.Version, d.ConstraintVer)
	cmp := dc.Compare(verStr, constraintStr)
	switch d.Constraint {
	case cache.CompLess:
		return cmp < 0
	case cache.CompLessEq:
		return cmp <= 0
	case cache.CompEq:
		return cmp == 0
	case cache.CompNotEqual:
		return cmp != 0
	case cache.CompGreaterEq:
		return cmp >= 0
	case cache.CompGreater:
		return cmp > 0
	default:
		return true
	}
}

func (dc *DepCache) satisfiedByProvides(grpID cache.GroupID, d *cache.Dependency, view targetView) bool {
	c := dc.Cache
	for _, pkgID := range c.Group(grpID).Packages {
		for _, provID := range c.Package(pkgID).Provides {
			prov := c.Provide(provID)
			providerPkg := c.Version(prov.Version).Pkg
			providerVer := dc.viewVersion(providerPkg, view)
			if providerVer != prov.Version {
				continue // this provide isn't from the version actually in play under this view
			}
			if d.Constraint != cache.CompNone && prov.ProvideVer == 0 {
				continue // versioned dependency, unversioned provide: no match
			}
			return true
		}
	}
	return false
}
