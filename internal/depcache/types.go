// Package depcache implements the dep-cache overlay: the mutable,
// per-package install/keep/delete state layered on top of the immutable
// package cache (§4.2). It never mutates the cache itself — it is a dense
// array of state indexed by the same PkgID/DepID the cache uses.
package depcache

import "github.com/debcore/apt/internal/cache"

// Mode is a package's requested install state.
type Mode uint8

const (
	Keep Mode = iota
	Install
	Delete
)

func (m Mode) String() string {
	switch m {
	case Install:
		return "Install"
	case Delete:
		return "Delete"
	default:
		return "Keep"
	}
}

// Flag is a bitset of per-package overlay flags.
type Flag uint16

const (
	// Auto marks a package as installed only to satisfy a dependency,
	// never requested directly; it is eligible for MarkAndSweep cleanup.
	Auto Flag = 1 << iota
	// Protected packages are never auto-removed; MarkDelete refuses one
	// that is marked Install, and MarkInstall refuses one marked Delete.
	Protected
	// Purge requests configuration removal alongside the package itself.
	Purge
	// Reinstall forces a reinstall even when the candidate equals the
	// installed version.
	Reinstall
	// MarkedBySweep is set internally during MarkAndSweep's reachability
	// walk; it is cleared at the start of every sweep.
	MarkedBySweep
	// Garbage is set on installed, non-Auto-reachable packages once a
	// sweep completes: candidates for autoremoval.
	Garbage
	// NeverMarkAuto packages (certain sections, e.g. "metapackages") never
	// get the Auto flag set by MarkInstall's recursive auto-install walk.
	NeverMarkAuto
	// Held packages refuse MarkInstall unless the caller passes
	// overrideHold (dpkg "hold" selection, §4.2); MarkDelete does not
	// check this flag.
	Held
	// UserProtected extends the MarkAndSweep root set (§4.2) beyond the
	// built-in Essential/Required rule, for packages the user explicitly
	// asked to keep around even though nothing depends on them.
	UserProtected
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// DepRollupBit names one bit of the per-package/per-dependency rollup
// bitset described in §4.2: whether a dependency is satisfied "now" (by
// what's currently installed), by what will be installed after this
// transaction, or by the candidate version, each at "min" (any critical
// dependency unmet) and "policy" (policy-relevant, e.g. Recommends when
// configured) severity.
type DepRollupBit uint8

const (
	DepNowMin DepRollupBit = 1 << iota
	DepNowPolicy
	DepInstallMin
	DepInstallPolicy
	DepCVerMin
	DepCVerPolicy
)

// PkgState is one package's overlay entry.
type PkgState struct {
	Mode          Mode
	InstallVer    cache.VerID
	CandidateVer  cache.VerID
	Flags         Flag
	InstallBroken bool
	Rollup        DepRollupBit
}

// DepState is one dependency's overlay entry: a mirror of the rollup bits
// above plus OR-group carry bits (whether an earlier alternative in the
// same OR-group already satisfies the group, so this record needn't be
// evaluated on its own).
type DepState struct {
	Rollup   DepRollupBit
	OrCarry  bool
}

// DepCache is the mutable overlay atop an immutable cache.Cache.
type DepCache struct {
	Cache *cache.Cache

	pkgs []PkgState // indexed by cache.PkgID
	deps []DepState // indexed by cache.DepID

	actionGroupDepth int
	sweepPending     bool

	// Policy supplies candidate versions and dependency importance; it is
	// an interface here (rather than importing internal/policy directly)
	// so depcache has no import-time dependency on the policy package's
	// pin configuration.
	Policy Policy

	// Compare is the dpkg version-ordering comparator used to test a
	// dependency's version constraint against a candidate string.
	Compare cache.VersionComparator

	// RootPredicates extend MarkAndSweep's reachable root set beyond
	// Essential/Required-priority/Protected/UserProtected, e.g. the "do not autoremove the
	// running kernel" regex rule from §9's design notes. Kept at this
	// predicate layer rather than hard-coded into the sweep itself.
	RootPredicates []func(c *cache.Cache, pkg cache.PkgID) bool
}

// Policy is the subset of internal/policy's Policy type depcache needs.
type Policy interface {
	GetCandidate(pkg cache.PkgID) cache.VerID
	IsImportantDep(dep cache.DepID) bool
}

// New returns a DepCache overlay for c, with every package defaulting to
// Keep at its CurrentVer. cmp is the dpkg version comparator used to check
// dependency constraint satisfaction in Update.
func New(c *cache.Cache, pol Policy, cmp cache.VersionComparator) *DepCache {
	dc := &DepCache{
		Cache:   c,
		pkgs:    make([]PkgState, c.PackageCount()+1),
		deps:    make([]DepState, c.DepCount()+1),
		Policy:  pol,
		Compare: cmp,
	}
	for id := 1; id <= c.PackageCount(); id++ {
		pkg := cache.PkgID(id)
		dc.pkgs[id].InstallVer = c.Package(pkg).CurrentVer
		dc.pkgs[id].CandidateVer = pol.GetCandidate(pkg)
	}
	return dc
}

// State returns the overlay entry for pkg.
func (dc *DepCache) State(pkg cache.PkgID) *PkgState { return &dc.pkgs[pkg] }

// DepBits returns the overlay entry for dep.
func (dc *DepCache) DepBits(dep cache.DepID) *DepState { return &dc.deps[dep] }
