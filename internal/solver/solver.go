// Package solver implements the backtracking, SAT-style dependency resolver
// (§4.4): given an initial transaction of required/forbidden package
// selections, it proves a consistent assignment over the shared immutable
// package cache or fails with a diagnosable conflict trace, writing its
// result back into a depcache.DepCache overlay.
package solver

import (
	"fmt"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/depcache"
)

// Decision is a package's resolved state.
type Decision uint8

const (
	Undecided Decision = iota
	Must
	MustNot
)

// Group orders work items: lower value pops first. Matches §4.4's
// HoldOrDelete > KeepAuto > InstallManual > UpgradeManual > UpgradeAuto >
// Satisfy > SatisfyNew > SatisfyObsolete > NewUnsatRecommends ordering.
type Group uint8

const (
	HoldOrDelete Group = iota
	KeepAuto
	InstallManual
	UpgradeManual
	UpgradeAuto
	Satisfy
	SatisfyNew
	SatisfyObsolete
	NewUnsatRecommends
)

// maxDepth caps recursion against pathological repositories, per §4.4's
// "hard cap on depth (e.g. 3,000)".
const maxDepth = 3000

// pkgState is the solver's own per-package decision record, parallel to the
// cache's PkgID space and independent of the depcache overlay.
type pkgState struct {
	decision Decision
	reason   string
	depth    int
}

// verState is the solver's per-version decision record.
type verState struct {
	decision Decision
	reason   string
	depth    int
}

// workItem is "at least one of Candidates must be installed".
type workItem struct {
	group     Group
	optional  bool
	pkgOrigin bool // true if this item was generated directly from a package-commit step rather than a version's dependency list
	candidates []cache.PkgID
	dirty     bool // skipped by popBest when set; nothing in this package sets it
}

// choicePoint records a still-open alternative to backtrack to: remaining
// holds every not-yet-ruled-out candidate in comparator order, with
// remaining[0] the one currently (or most recently) attempted.
type choicePoint struct {
	depth     int
	optional  bool
	remaining []cache.PkgID
	queueLen  int         // length of the work queue when this choice point was pushed
	lastVer   cache.VerID // version committed for remaining[0], if any
}

// Conflict describes why the solver failed, per §7's user-visible
// unresolvable-state reporting.
type Conflict struct {
	Package     cache.PkgID
	Explanation string
}

func (c Conflict) Error() string { return c.Explanation }

// Solver resolves a transaction over a Cache, writing results into a
// depcache.DepCache.
type Solver struct {
	Cache *cache.Cache
	Dep   *depcache.DepCache

	pkgs []pkgState // indexed by PkgID
	vers []verState // indexed by VerID

	queue  []workItem
	stack  []choicePoint
	depth  int
}

// New returns a Solver over c, recording decisions into dc.
func New(c *cache.Cache, dc *depcache.DepCache) *Solver {
	return &Solver{
		Cache: c,
		Dep:   dc,
		pkgs:  make([]pkgState, c.PackageCount()+1),
		vers:  make([]verState, c.VersionCount()+1),
	}
}

// RequireInstall seeds the transaction with a manual install request for
// pkg, per §4.4's InstallManual group.
func (s *Solver) RequireInstall(pkg cache.PkgID) {
	s.pushWork(workItem{group: InstallManual, candidates: []cache.PkgID{pkg}})
}

// RequireDelete seeds the transaction with a manual delete/hold request for
// pkg: it is pushed as an immediate MustNot on every version of pkg.
func (s *Solver) RequireDelete(pkg cache.PkgID) {
	s.commitMustNotPackage(pkg, "explicitly requested for removal", 0)
}

// RequireKeep seeds the transaction with a hold: pkg's currently installed
// version (if any) is forced Must, everything else MustNot, per S3's "held
// back" scenario. An explicitly Held package (or a manually installed one
// simply being left alone) takes the HoldOrDelete group; an automatically
// installed package being kept only because nothing is asking it to change
// takes the lower-priority KeepAuto group.
func (s *Solver) RequireKeep(pkg cache.PkgID) {
	cur := s.Cache.Package(pkg).CurrentVer
	if cur == 0 {
		return
	}
	group := HoldOrDelete
	st := s.Dep.State(pkg)
	if st.Flags&depcache.Held == 0 && st.Flags&depcache.Auto != 0 {
		group = KeepAuto
	}
	s.pushWork(workItem{group: group, candidates: []cache.PkgID{pkg}})
	if err := s.commitVersion(cur, "held at the currently installed version", 0); err != nil {
		// A hold that contradicts an already-committed MustNot is a conflict
		// the caller surfaces via Resolve's return value, not here.
		_ = err
	}
}

// RequireUpgrade seeds the transaction with an upgrade request for pkg,
// per §4.4's UpgradeManual/UpgradeAuto groups: manual distinguishes a
// directly requested "apt-get upgrade pkg" from one pulled in automatically
// while upgrading a dependency. Optional: a package that cannot be upgraded
// cleanly is simply left where it is rather than failing the transaction.
func (s *Solver) RequireUpgrade(pkg cache.PkgID, manual bool) {
	group := UpgradeAuto
	if manual {
		group = UpgradeManual
	}
	s.pushWork(workItem{group: group, optional: true, candidates: []cache.PkgID{pkg}})
}

func (s *Solver) pushWork(item workItem) { s.queue = append(s.queue, item) }

// popBest removes and returns the highest-priority non-dirty item: lowest
// Group value, singletons before multi-candidate items, non-optional before
// optional, package-origin before version-origin, matching §4.4's max-heap
// ordering description (searched linearly since work queues in practice stay
// small relative to package counts).
func (s *Solver) popBest() (workItem, bool) {
	best := -1
	for i, it := range s.queue {
		if it.dirty {
			continue
		}
		if best == -1 || lessItem(it, s.queue[best]) {
			best = i
		}
	}
	if best == -1 {
		return workItem{}, false
	}
	item := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	return item, true
}

func lessItem(a, b workItem) bool {
	if len(a.candidates) != len(b.candidates) {
		if len(a.candidates) == 1 || len(b.candidates) == 1 {
			return len(a.candidates) < len(b.candidates) // singletons first
		}
	}
	if a.group != b.group {
		return a.group < b.group
	}
	if a.optional != b.optional {
		return !a.optional // non-optional before optional
	}
	if a.pkgOrigin != b.pkgOrigin {
		return a.pkgOrigin // package-origin before version-origin
	}
	return len(a.candidates) < len(b.candidates)
}

// Resolve runs the main loop (§4.4) to completion, returning the first
// unrecoverable Conflict if the transaction is unsatisfiable. Any Conflict
// process raises — whether immediate or discovered only once a later,
// unrelated work item turns out unsatisfiable — is first offered to
// backtrack, which unwinds to an open choice point and retries before the
// run is given up as unsatisfiable.
func (s *Solver) Resolve() error {
	for {
		item, ok := s.popBest()
		if !ok {
			break
		}
		if err := s.process(item); err != nil {
			if err := s.backtrack(err); err != nil {
				return err
			}
		}
	}
	s.writeBack()
	return nil
}

// process handles one popped work item per the main-loop steps 2-6.
func (s *Solver) process(item workItem) error {
	// Step 2: already satisfied by an existing Must? A package can already
	// carry a Must version other than its depcache candidate (e.g. a hold
	// commits the currently installed version, not the newest candidate),
	// so this scans every version of the package rather than just its
	// candidate.
	for _, pkg := range item.candidates {
		if s.mustVersionOf(pkg) != 0 {
			return nil
		}
	}

	// Step 3: sort candidates by the expanded provider comparator (falls
	// back to declared order when the item has exactly one candidate, the
	// common case for a direct dependency on a named package).
	ordered := s.orderCandidates(item)
	if len(ordered) == 0 {
		if !item.optional {
			return Conflict{Explanation: "no viable candidate for an unresolved dependency"}
		}
		return nil // an optional (Recommends/Suggests) item with nothing viable is simply dropped
	}

	if s.depth >= maxDepth {
		return Conflict{Explanation: "solver exceeded maximum recursion depth"}
	}

	// Step 4: push a choice point when there is more than one viable
	// alternative, or the item itself is optional (so failing to commit it
	// is recoverable rather than fatal), and try the first alternative.
	// With exactly one mandatory candidate there is nothing to backtrack
	// into locally, so it commits directly; a contradiction still
	// propagates up for an older choice point elsewhere on the stack to
	// absorb.
	if len(ordered) > 1 || item.optional {
		s.stack = append(s.stack, choicePoint{
			depth:     s.depth,
			optional:  item.optional,
			remaining: append([]cache.PkgID(nil), ordered...),
			queueLen:  len(s.queue),
		})
		return s.tryTop()
	}
	return s.attempt(ordered[0])
}

// attempt commits pkg's sole mandatory candidate version.
func (s *Solver) attempt(pkg cache.PkgID) error {
	s.depth++
	cand := s.mustVersionOf(pkg)
	if cand == 0 {
		cand = s.installCandidate(pkg)
	}
	if cand == 0 {
		s.depth--
		return Conflict{Explanation: "no installable candidate for a required dependency"}
	}
	err := s.commitVersion(cand, "chosen to satisfy a dependency", s.depth)
	if err == nil {
		return nil
	}
	var conflict Conflict
	if !asConflict(err, &conflict) {
		return err
	}
	s.popToLevel(s.depth - 1)
	s.depth--
	return conflict
}

// tryTop attempts the next untried alternative at the top choice point,
// committing it and recording it as lastVer so a later backtrack knows what
// to rule out. It pops the choice point once every alternative has failed.
func (s *Solver) tryTop() error {
	cp := &s.stack[len(s.stack)-1]
	for len(cp.remaining) > 0 {
		pkg := cp.remaining[0]
		s.depth++
		cand := s.mustVersionOf(pkg)
		if cand == 0 {
			cand = s.installCandidate(pkg)
		}
		if cand == 0 {
			s.depth--
			cp.remaining = cp.remaining[1:]
			continue
		}
		cp.lastVer = cand
		err := s.commitVersion(cand, "chosen to satisfy a dependency", s.depth)
		if err == nil {
			return nil
		}
		var conflict Conflict
		if !asConflict(err, &conflict) {
			return err
		}
		s.popToLevel(s.depth - 1)
		s.depth--
		cp.remaining = cp.remaining[1:]
	}
	optional := cp.optional
	s.stack = s.stack[:len(s.stack)-1]
	if optional {
		return nil
	}
	return Conflict{Explanation: "every alternative for a dependency led to a contradiction"}
}

// backtrack recovers from a Conflict raised anywhere in the run — whether
// raised immediately by the choice just made, or only later, once an
// unrelated work item turns out unsatisfiable because of a choice made
// earlier — by unwinding to the most recent open choice point (§4.4's
// "pop to level" backtracking): its last-tried alternative is ruled MustNot
// and the remaining alternatives are retried via tryTop, continuing to
// older choice points on the stack as long as each one's alternatives are
// exhausted in turn. Returns the original Conflict once the stack itself is
// exhausted, i.e. the transaction is genuinely unsatisfiable.
func (s *Solver) backtrack(cause error) error {
	var conflict Conflict
	if !asConflict(cause, &conflict) {
		return cause
	}
	for len(s.stack) > 0 {
		cp := &s.stack[len(s.stack)-1]
		s.popToLevel(cp.depth)
		s.depth = cp.depth
		if cp.queueLen <= len(s.queue) {
			s.queue = s.queue[:cp.queueLen]
		}
		if cp.lastVer != 0 {
			_ = s.commitMustNotVersion(cp.lastVer, "ruled out by backtracking past a contradiction", cp.depth)
			cp.lastVer = 0
		}
		if len(cp.remaining) > 0 {
			cp.remaining = cp.remaining[1:]
		}
		err := s.tryTop()
		if err == nil {
			return nil
		}
		if !asConflict(err, &conflict) {
			return err
		}
		// tryTop exhausted (and popped) this choice point; its failure is
		// itself a conflict to offer the next-older choice point, so loop.
	}
	return conflict
}

func asConflict(err error, out *Conflict) bool {
	c, ok := err.(Conflict)
	if ok {
		*out = c
	}
	return ok
}

// installCandidate returns the depcache candidate version for pkg, the
// version the solver considers when it needs "the" install target.
func (s *Solver) installCandidate(pkg cache.PkgID) cache.VerID {
	return s.Dep.State(pkg).CandidateVer
}

// mustVersionOf returns the version of pkg already committed Must, if any,
// else 0. Distinct from installCandidate: a hold or an explicit keep commits
// a version other than the depcache candidate.
func (s *Solver) mustVersionOf(pkg cache.PkgID) cache.VerID {
	if s.pkgs[pkg].decision != Must {
		return 0
	}
	for _, v := range s.Cache.Package(pkg).Versions {
		if s.vers[v].decision == Must {
			return v
		}
	}
	return 0
}

// orderCandidates resolves each work-item candidate package to its concrete
// candidate version (dropping MustNot and candidate-less packages) and
// sorts what remains via depcache's expanded provider comparator.
func (s *Solver) orderCandidates(item workItem) []cache.PkgID {
	var live []cache.PkgID
	for _, pkg := range item.candidates {
		if s.mustVersionOf(pkg) != 0 {
			live = append(live, pkg)
			continue
		}
		cand := s.installCandidate(pkg)
		if cand == 0 || s.vers[cand].decision == MustNot {
			continue
		}
		live = append(live, pkg)
	}
	if len(live) <= 1 {
		return live
	}
	target := live[0]
	for i := 1; i < len(live); i++ {
		j := i
		for j > 0 && s.Dep.CompareProvidersUpgrade(target, s.installCandidate(live[j-1]), s.installCandidate(live[j])) > 0 {
			live[j-1], live[j] = live[j], live[j-1]
			j--
		}
	}
	return live
}

// commitVersion commits Must for ver, commits MustNot on every sibling
// version of its package, and enqueues ver's dependencies and negative
// dependencies (§4.4 step 5). It does not walk the reverse dependencies of
// the sibling versions it rules out.
func (s *Solver) commitVersion(ver cache.VerID, reason string, depth int) error {
	if s.vers[ver].decision == Must {
		return nil
	}
	if s.vers[ver].decision == MustNot {
		return Conflict{Package: s.Cache.Version(ver).Pkg, Explanation: "contradiction: " + reason + " but this version is already ruled out"}
	}
	s.vers[ver].decision = Must
	s.vers[ver].reason = reason
	s.vers[ver].depth = depth

	pkg := s.Cache.Version(ver).Pkg
	s.pkgs[pkg].decision = Must
	s.pkgs[pkg].reason = reason
	s.pkgs[pkg].depth = depth

	for _, sibling := range s.Cache.Package(pkg).Versions {
		if sibling == ver {
			continue
		}
		if err := s.commitMustNotVersion(sibling, "a sibling version of this package was committed", depth); err != nil {
			return err
		}
	}

	if err := s.enqueueDependencies(ver, depth); err != nil {
		return err
	}
	return s.enqueueNegatives(ver, depth)
}

// enqueueDependencies pushes one work item per OR-group of ver's critical
// (and, if important, Recommends/Suggests) dependencies.
func (s *Solver) enqueueDependencies(ver cache.VerID, depth int) error {
	c := s.Cache
	depIDs := c.Version(ver).Depends
	for i := 0; i < len(depIDs); i++ {
		group := []cache.DepID{depIDs[i]}
		for c.Dep(depIDs[i]).Or {
			i++
			group = append(group, depIDs[i])
		}

		first := c.Dep(group[0])
		if first.Kind.Negative() {
			continue // handled by enqueueNegatives
		}
		if !first.Kind.Critical() && !s.Dep.Policy.IsImportantDep(group[0]) {
			continue
		}

		var candidates []cache.PkgID
		for _, depID := range group {
			if pkg := s.resolveTarget(c.Dep(depID)); pkg != 0 {
				candidates = append(candidates, pkg)
			}
		}
		if len(candidates) == 0 {
			if first.Kind.Critical() {
				return Conflict{Explanation: "a critical dependency has no resolvable target package"}
			}
			continue
		}

		grp := s.groupFor(first.Kind, candidates)
		optional := first.Kind == cache.Recommends || first.Kind == cache.Suggests
		s.pushWork(workItem{group: grp, optional: optional, candidates: candidates})
	}
	return nil
}

// groupFor classifies a dependency's work item per §4.4's Satisfy/
// SatisfyNew/SatisfyObsolete/NewUnsatRecommends split: Recommends/Suggests
// always sort last; of the rest, a dependency whose every candidate
// target's candidate version is obsolete (depcache.IsObsolete) gets
// SatisfyObsolete, one none of whose candidate targets is currently
// installed gets SatisfyNew, and any other gets Satisfy. Lower Group values
// pop first, so Satisfy pops before SatisfyNew and SatisfyNew before
// SatisfyObsolete.
func (s *Solver) groupFor(kind cache.DepKind, candidates []cache.PkgID) Group {
	if kind == cache.Recommends || kind == cache.Suggests {
		return NewUnsatRecommends
	}
	obsolete, isNew := true, true
	for _, pkg := range candidates {
		if s.Cache.Package(pkg).CurrentVer != 0 {
			isNew = false
		}
		if cand := s.installCandidate(pkg); cand == 0 || !s.Dep.IsObsolete(cand) {
			obsolete = false
		}
	}
	switch {
	case obsolete:
		return SatisfyObsolete
	case isNew:
		return SatisfyNew
	default:
		return Satisfy
	}
}

// enqueueNegatives commits MustNot to every target of ver's
// Conflicts/Breaks/Obsoletes, per §4.4 "negative dependencies on commit".
func (s *Solver) enqueueNegatives(ver cache.VerID, depth int) error {
	c := s.Cache
	depIDs := c.Version(ver).Depends
	for _, depID := range depIDs {
		d := c.Dep(depID)
		if !d.Kind.Negative() {
			continue
		}
		target := s.resolveTarget(d)
		if target == 0 {
			continue
		}
		for _, tv := range c.Package(target).Versions {
			if !s.versionMatchesNegative(tv, d) {
				continue
			}
			if err := s.commitMustNotVersion(tv, fmt.Sprintf("conflicts with a committed version (%s)", d.Kind), depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// versionMatchesNegative reports whether ver falls within a negative
// dependency's constraint (e.g. Conflicts foo (<< 3) matches every ver <<
// 3). CompNotEqual (the implicit multi-arch Breaks relation) matches every
// version except the one named in the constraint.
func (s *Solver) versionMatchesNegative(ver cache.VerID, d *cache.Dependency) bool {
	if d.Constraint == cache.CompNone {
		return true
	}
	verStr := s.Cache.Arena.String(arena.Version, s.Cache.Version(ver).VerStr)
	constraintStr := s.Cache.Arena.String(arena.Version, d.ConstraintVer)
	cmp := s.Dep.Compare(verStr, constraintStr)
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

// resolveTarget resolves a dependency record to a concrete target package.
// An arch-qualified dependency resolves only to the group member of that
// architecture (0 if there is none); an arch-agnostic one prefers the
// native-arch member and otherwise falls back to the group's first member.
// A group with no members (a purely virtual target) resolves to 0.
func (s *Solver) resolveTarget(d *cache.Dependency) cache.PkgID {
	c := s.Cache
	grpID := d.TargetPkg
	if grpID == 0 {
		return 0
	}
	if d.TargetArch != 0 {
		wantArch := c.Arena.String(arena.Mixed, d.TargetArch)
		for _, pkg := range c.Group(grpID).Packages {
			if c.Arena.String(arena.Mixed, c.Package(pkg).Arch) == wantArch {
				return pkg
			}
		}
		return 0
	}
	arch := c.NativeArch
	for _, pkg := range c.Group(grpID).Packages {
		if c.Arena.String(arena.Mixed, c.Package(pkg).Arch) == arch {
			return pkg
		}
	}
	grp := c.Group(grpID)
	if len(grp.Packages) > 0 {
		return grp.Packages[0]
	}
	return 0
}

// commitMustNotVersion commits MustNot for ver and, if ver was the last
// remaining candidate of a Must-decided package, fails per §4.4 propagation
// rule 2.
func (s *Solver) commitMustNotVersion(ver cache.VerID, reason string, depth int) error {
	if s.vers[ver].decision == MustNot {
		return nil
	}
	if s.vers[ver].decision == Must {
		return Conflict{Package: s.Cache.Version(ver).Pkg, Explanation: "contradiction: " + reason + " but this version was already committed"}
	}
	s.vers[ver].decision = MustNot
	s.vers[ver].reason = reason
	s.vers[ver].depth = depth

	pkg := s.Cache.Version(ver).Pkg
	if s.pkgs[pkg].decision == Must {
		allRuledOut := true
		for _, v := range s.Cache.Package(pkg).Versions {
			if s.vers[v].decision != MustNot {
				allRuledOut = false
				break
			}
		}
		if allRuledOut {
			return Conflict{Package: pkg, Explanation: fmt.Sprintf("%s, leaving package with no installable version", reason)}
		}
	}
	return nil
}

func (s *Solver) commitMustNotPackage(pkg cache.PkgID, reason string, depth int) {
	s.pkgs[pkg].decision = MustNot
	s.pkgs[pkg].reason = reason
	s.pkgs[pkg].depth = depth
	for _, v := range s.Cache.Package(pkg).Versions {
		s.vers[v].decision = MustNot
		s.vers[v].reason = reason
		s.vers[v].depth = depth
	}
}

// popToLevel discards every decision, work item and choice point recorded
// above depth level, per §4.4's backtracking description: "a single pass
// over the decision slice at pop."
func (s *Solver) popToLevel(level int) {
	for i := range s.pkgs {
		if s.pkgs[i].decision != Undecided && s.pkgs[i].depth > level {
			s.pkgs[i] = pkgState{}
		}
	}
	for i := range s.vers {
		if s.vers[i].decision != Undecided && s.vers[i].depth > level {
			s.vers[i] = verState{}
		}
	}
	for len(s.stack) > 0 && s.stack[len(s.stack)-1].depth > level {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// writeBack commits every Must/MustNot package decision into the depcache
// overlay as Install/Delete, per §4.4's "write decisions back" output step.
func (s *Solver) writeBack() {
	for id := 1; id < len(s.pkgs); id++ {
		pkg := cache.PkgID(id)
		switch s.pkgs[id].decision {
		case Must:
			wasUninstalled := s.Cache.Package(pkg).CurrentVer == 0
			_ = s.Dep.MarkInstall(pkg, false, true)
			if wasUninstalled {
				s.Dep.State(pkg).Flags |= depcache.Auto
			}
		case MustNot:
			_ = s.Dep.MarkDelete(pkg, false)
		}
	}
}
