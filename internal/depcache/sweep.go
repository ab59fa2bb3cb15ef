package depcache

import "github.com/debcore/apt/internal/cache"

// ConsiderRecommends and ConsiderSuggests widen MarkAndSweep's reachability
// walk beyond Depends/PreDepends, per §4.2's "(if configured)" note.
type SweepConfig struct {
	ConsiderRecommends bool
	ConsiderSuggests   bool
}

// MarkAndSweep marks every package reachable from the root set — Essential,
// Required-priority, Protected, UserProtected, and anything accepted by a
// RootPredicate (e.g. the kernel-keep regex from §9) — across
// Depends/PreDepends and, if cfg says so, Recommends/Suggests. Every
// installed package left unmarked becomes Garbage: a candidate for
// autoremoval.
func (dc *DepCache) MarkAndSweep() { dc.MarkAndSweepWith(SweepConfig{}) }

// MarkAndSweepWith is MarkAndSweep with explicit Recommends/Suggests
// traversal configuration.
func (dc *DepCache) MarkAndSweepWith(cfg SweepConfig) {
	c := dc.Cache
	for id := 1; id <= c.PackageCount(); id++ {
		dc.pkgs[id].Flags &^= MarkedBySweep | Garbage
	}

	var stack []cache.PkgID
	push := func(pkg cache.PkgID) {
		if dc.pkgs[pkg].Flags.has(MarkedBySweep) {
			return
		}
		dc.pkgs[pkg].Flags |= MarkedBySweep
		stack = append(stack, pkg)
	}

	for id := 1; id <= c.PackageCount(); id++ {
		pkg := cache.PkgID(id)
		if dc.isRoot(pkg) {
			push(pkg)
		}
	}

	for len(stack) > 0 {
		pkg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ver := dc.viewVersion(pkg, targetInstall)
		if ver == 0 {
			continue
		}
		for _, depID := range c.Version(ver).Depends {
			dep := c.Dep(depID)
			if !dc.sweepFollows(dep.Kind, cfg) {
				continue
			}
			target := dc.resolveTargetPkg(dep)
			if target != 0 {
				push(target)
			}
		}
	}

	for id := 1; id <= c.PackageCount(); id++ {
		pkg := cache.PkgID(id)
		state := dc.pkgs[id]
		installed := state.Mode != Delete && dc.viewVersion(pkg, targetInstall) != 0
		if installed && !state.Flags.has(MarkedBySweep) {
			dc.pkgs[id].Flags |= Garbage
		}
	}
}

func (dc *DepCache) sweepFollows(kind cache.DepKind, cfg SweepConfig) bool {
	switch kind {
	case cache.Depends, cache.PreDepends:
		return true
	case cache.Recommends:
		return cfg.ConsiderRecommends
	case cache.Suggests:
		return cfg.ConsiderSuggests
	default:
		return false
	}
}

// isRoot reports whether pkg is a member of the autoremove root set: always
// kept reachable regardless of what depends on it.
func (dc *DepCache) isRoot(pkg cache.PkgID) bool {
	c := dc.Cache
	state := dc.State(pkg)
	if state.Flags.has(Protected) || state.Flags.has(UserProtected) {
		return true
	}
	if state.Mode == Install && !state.Flags.has(Auto) {
		return true // an explicit, non-automatic install request is always a root
	}
	ver := dc.viewVersion(pkg, targetInstall)
	if ver != 0 {
		v := c.Version(ver)
		if v.Essential || v.Priority == cache.PriorityRequired {
			return true
		}
	}
	for _, pred := range dc.RootPredicates {
		if pred(c, pkg) {
			return true
		}
	}
	return false
}
