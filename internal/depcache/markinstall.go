package depcache

import (
	"fmt"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
)

// MarkInstall marks pkg for installation at its current candidate version,
// per §4.2. When autoInstall is true it walks the OR-group dependencies of
// the chosen version and recursively marks a provider for each
// critical/important one, setting the Auto flag on anything it pulls in
// this way (unless that package's section is flagged NeverMarkAuto).
//
// A held package refuses the mode change unless overrideHold is set; a
// package explicitly Protected in the opposite direction (marked for
// deletion by an earlier, still-in-effect user request) also refuses,
// since auto-install recursion must never silently reverse an explicit
// user decision.
func (dc *DepCache) MarkInstall(pkg cache.PkgID, autoInstall, overrideHold bool) error {
	return dc.markInstall(pkg, autoInstall, overrideHold, false, make(map[cache.PkgID]bool))
}

func (dc *DepCache) markInstall(pkg cache.PkgID, autoInstall, overrideHold, auto bool, visiting map[cache.PkgID]bool) error {
	if visiting[pkg] {
		return nil // dependency cycle; the cycle's first visitor already committed it
	}
	visiting[pkg] = true

	state := dc.State(pkg)
	if state.Flags.has(Held) && !overrideHold {
		return fmt.Errorf("depcache: %s is held back", pkgName(dc.Cache, pkg))
	}
	if state.Flags.has(Protected) && state.Mode == Delete {
		return fmt.Errorf("depcache: %s is protected against installation", pkgName(dc.Cache, pkg))
	}

	cand := state.CandidateVer
	if cand == 0 {
		return fmt.Errorf("depcache: %s has no installation candidate", pkgName(dc.Cache, pkg))
	}

	wasNotInstall := state.Mode != Install
	state.Mode = Install
	state.InstallVer = cand
	if auto && !state.Flags.has(NeverMarkAuto) {
		state.Flags |= Auto
	} else if !auto {
		state.Flags &^= Auto
	}

	if autoInstall && wasNotInstall {
		if err := dc.autoInstallDeps(cand, overrideHold, visiting); err != nil {
			return err
		}
	}

	dc.deferOrSweep()
	return nil
}

// autoInstallDeps walks ver's critical/important dependencies, grouping
// consecutive Or-flagged records into one OR-group, and recursively marks a
// chosen provider for each group that isn't already satisfied.
func (dc *DepCache) autoInstallDeps(ver cache.VerID, overrideHold bool, visiting map[cache.PkgID]bool) error {
	c := dc.Cache
	depIDs := c.Version(ver).Depends

	for i := 0; i < len(depIDs); i++ {
		group := []cache.DepID{depIDs[i]}
		for dc.Cache.Dep(depIDs[i]).Or {
			i++
			group = append(group, depIDs[i])
		}

		first := c.Dep(group[0])
		if !first.Kind.Critical() && !dc.Policy.IsImportantDep(group[0]) {
			continue
		}
		if first.Kind.Negative() {
			continue // negative kinds are enforced by the solver, not auto-install
		}

		target, ok := dc.chooseProvider(group)
		if !ok {
			continue // no viable provider; MarkInstall leaves this unresolved for the solver
		}
		if err := dc.markInstall(target, true, overrideHold, true, visiting); err != nil {
			return err
		}
	}
	return nil
}

// chooseProvider picks the best package to satisfy one OR-group of
// dependency records, using CompareProviders over every possibility's
// target package.
func (dc *DepCache) chooseProvider(group []cache.DepID) (cache.PkgID, bool) {
	c := dc.Cache
	var best cache.PkgID
	var bestVer cache.VerID

	for _, depID := range group {
		dep := c.Dep(depID)
		targetPkg := dc.resolveTargetPkg(dep)
		if targetPkg == 0 {
			continue
		}
		cand := dc.State(targetPkg).CandidateVer
		if cand == 0 {
			continue
		}
		if best == 0 || dc.CompareProviders(targetPkg, cand, bestVer) < 0 {
			best, bestVer = targetPkg, cand
		}
	}
	return best, best != 0
}

// resolveTargetPkg finds the concrete package a dependency record targets,
// preferring the native architecture when the record is arch-agnostic.
func (dc *DepCache) resolveTargetPkg(dep *cache.Dependency) cache.PkgID {
	c := dc.Cache
	name := c.Arena.String(arena.Package, dep.TargetName)
	arch := c.NativeArch
	if dep.TargetArch != 0 {
		arch = c.Arena.String(arena.Mixed, dep.TargetArch)
	}
	return c.FindPkg(name, arch)
}

func pkgName(c *cache.Cache, pkg cache.PkgID) string {
	p := c.Package(pkg)
	return c.Arena.String(arena.Package, p.Name) + ":" + c.Arena.String(arena.Mixed, p.Arch)
}
