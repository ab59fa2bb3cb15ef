package solver

import (
	"testing"

	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/depcache"
)

type allCandidatesPolicy struct{ c *cache.Cache }

func (p *allCandidatesPolicy) GetCandidate(pkg cache.PkgID) cache.VerID {
	versions := p.c.Package(pkg).Versions
	if len(versions) == 0 {
		return 0
	}
	return versions[0]
}

func (p *allCandidatesPolicy) IsImportantDep(dep cache.DepID) bool { return false }

func lexCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TestTrivialInstall builds S1 from spec.md §8: a(=1) depends on b(>=1);
// b(=1) is present. Resolving a manual install of a must yield {a, b}.
func TestTrivialInstall(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})

	a := c.NewPackage("a", "amd64")
	aVer := c.NewVersion(a, "1", lexCompare)
	c.Package(a).Versions = []cache.VerID{aVer}

	b := c.NewPackage("b", "amd64")
	bVer := c.NewVersion(b, "1", lexCompare)
	c.Package(b).Versions = []cache.VerID{bVer}

	c.NewDepends(aVer, "b", "", cache.CompGreaterEq, "1", cache.Depends, false)

	pol := &allCandidatesPolicy{c: c}
	dc := depcache.New(c, pol, lexCompare)
	sv := New(c, dc)
	sv.RequireInstall(a)

	if err := sv.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dc.State(a).Mode != depcache.Install {
		t.Fatalf("a mode = %v, want Install", dc.State(a).Mode)
	}
	if dc.State(b).Mode != depcache.Install {
		t.Fatalf("b mode = %v, want Install: it satisfies a's Depends", dc.State(b).Mode)
	}
}

// TestOrGroupFallback builds S2: a depends on x|y; x has no candidate, y(=1)
// does. Resolving must yield {a, y}, with a not install-broken.
func TestOrGroupFallback(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})

	a := c.NewPackage("a", "amd64")
	aVer := c.NewVersion(a, "1", lexCompare)
	c.Package(a).Versions = []cache.VerID{aVer}

	// x exists only as a purely virtual package (no versions): NewDepends
	// creates its group via NewGroup, but GetCandidate returns 0 for it.
	y := c.NewPackage("y", "amd64")
	yVer := c.NewVersion(y, "1", lexCompare)
	c.Package(y).Versions = []cache.VerID{yVer}

	c.NewDepends(aVer, "x", "", cache.CompNone, "", cache.Depends, true)
	c.NewDepends(aVer, "y", "", cache.CompNone, "", cache.Depends, false)

	pol := &allCandidatesPolicy{c: c}
	dc := depcache.New(c, pol, lexCompare)
	sv := New(c, dc)
	sv.RequireInstall(a)

	if err := sv.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dc.State(y).Mode != depcache.Install {
		t.Fatal("y should be installed: it is the only viable alternative in the OR-group")
	}
	dc.Update()
	if dc.State(a).InstallBroken {
		t.Fatal("a should not be InstallBroken: its OR-group is satisfied by y")
	}
}

// TestHoldRespected builds S3: h installed at =1 with Hold flag; candidate
// is =2; RequireKeep must keep h at =1.
func TestHoldRespected(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})

	h := c.NewPackage("h", "amd64")
	v2 := c.NewVersion(h, "2", lexCompare)
	v1 := c.NewVersion(h, "1", lexCompare)
	c.Package(h).Versions = []cache.VerID{v2, v1}
	c.Package(h).CurrentVer = v1

	pol := &allCandidatesPolicy{c: c}
	dc := depcache.New(c, pol, lexCompare)
	sv := New(c, dc)
	sv.RequireKeep(h)

	if err := sv.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sv.vers[v2].decision != MustNot {
		t.Fatal("the newer candidate should be ruled out by the hold")
	}
	if sv.vers[v1].decision != Must {
		t.Fatal("the currently installed version should be committed by the hold")
	}
}

// TestConflictsBreaksUpgrade builds S4: a(=2) Conflicts b(<3); installed are
// a=1, b=2, and nothing supplies a newer b. Requesting an upgrade of a while
// b is held at its installed version must fail with an unmet-conflict
// Conflict rather than silently dropping b.
func TestConflictsBreaksUpgrade(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})

	a := c.NewPackage("a", "amd64")
	aV2 := c.NewVersion(a, "2", lexCompare)
	aV1 := c.NewVersion(a, "1", lexCompare)
	c.Package(a).Versions = []cache.VerID{aV2, aV1}
	c.Package(a).CurrentVer = aV1

	b := c.NewPackage("b", "amd64")
	bV2 := c.NewVersion(b, "2", lexCompare)
	c.Package(b).Versions = []cache.VerID{bV2}
	c.Package(b).CurrentVer = bV2

	c.NewDepends(aV2, "b", "", cache.CompLess, "3", cache.Conflicts, false)

	pol := &allCandidatesPolicy{c: c}
	dc := depcache.New(c, pol, lexCompare)
	sv := New(c, dc)
	sv.RequireKeep(b)
	sv.RequireInstall(a)

	err := sv.Resolve()
	if err == nil {
		t.Fatal("Resolve should report an unmet conflict: a(=2) Conflicts b(<3) but b=2 is held installed")
	}
	var conflict Conflict
	if !asConflict(err, &conflict) {
		t.Fatalf("expected a Conflict, got %T: %v", err, err)
	}
}

// TestBacktrackAcrossOrGroup reproduces the scenario behind §4.4's
// choice-point stack: a Depends x|y; the comparator prefers x (it is in
// the target's group). Committing x contradicts at once: its critical
// dependency on p has no resolvable target, so enqueueDependencies reports
// a Conflict. The solver must unwind x at the x|y choice point and retry
// with y — which has no further dependencies and succeeds — rather than
// reporting the whole transaction unsatisfiable.
func TestBacktrackAcrossOrGroup(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})

	a := c.NewPackage("a", "amd64")
	aVer := c.NewVersion(a, "1", lexCompare)
	c.Package(a).Versions = []cache.VerID{aVer}

	x := c.NewPackage("x", "amd64")
	xVer := c.NewVersion(x, "1", lexCompare)
	c.Package(x).Versions = []cache.VerID{xVer}

	y := c.NewPackage("y", "amd64")
	yVer := c.NewVersion(y, "1", lexCompare)
	c.Package(y).Versions = []cache.VerID{yVer}

	// p exists only as a purely virtual package: x's critical dependency on
	// it has no resolvable target, so committing x contradicts immediately.
	c.NewDepends(aVer, "x", "", cache.CompNone, "", cache.Depends, true)
	c.NewDepends(aVer, "y", "", cache.CompNone, "", cache.Depends, false)
	c.NewDepends(xVer, "p", "", cache.CompNone, "", cache.Depends, false)

	pol := &allCandidatesPolicy{c: c}
	dc := depcache.New(c, pol, lexCompare)
	sv := New(c, dc)
	sv.RequireInstall(a)

	if err := sv.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dc.State(y).Mode != depcache.Install {
		t.Fatal("y should be installed: backtracking must rule out x once p turns out unsatisfiable")
	}
	if dc.State(x).Mode == depcache.Install {
		t.Fatal("x should not be installed: its own dependency on p has no viable candidate")
	}
}
