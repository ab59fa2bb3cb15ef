package depcache

import (
	"testing"

	"github.com/debcore/apt/internal/cache"
)

// fakePolicy implements the Policy interface with the newest version of
// each package as its candidate and treats Recommends as important,
// mirroring a default "install-recommends=true" configuration.
type fakePolicy struct {
	c *cache.Cache
}

func (p *fakePolicy) GetCandidate(pkg cache.PkgID) cache.VerID {
	versions := p.c.Package(pkg).Versions
	if len(versions) == 0 {
		return 0
	}
	return versions[0] // descending order: index 0 is newest
}

func (p *fakePolicy) IsImportantDep(dep cache.DepID) bool {
	return p.c.Dep(dep).Kind == cache.Recommends
}

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

// buildFixture constructs: foo 1.0 Depends bar (>= 1.0); bar has two
// versions 1.0 and 2.0; baz Provides bar.
func buildFixture(t *testing.T) (*cache.Cache, cache.PkgID, cache.PkgID, cache.PkgID) {
	t.Helper()
	c := cache.New("amd64", []string{"amd64"})

	foo := c.NewPackage("foo", "amd64")
	fooVer := c.NewVersion(foo, "1.0", lexCompare)
	c.Package(foo).Versions = []cache.VerID{fooVer}

	bar := c.NewPackage("bar", "amd64")
	barV2 := c.NewVersion(bar, "2.0", lexCompare)
	barV1 := c.NewVersion(bar, "1.0", lexCompare)
	c.Package(bar).Versions = []cache.VerID{barV2, barV1}

	baz := c.NewPackage("baz", "amd64")
	bazVer := c.NewVersion(baz, "1.0", lexCompare)
	c.Package(baz).Versions = []cache.VerID{bazVer}

	c.NewDepends(fooVer, "bar", "", cache.CompGreaterEq, "1.0", cache.Depends, false)

	return c, foo, bar, baz
}

func TestMarkInstallAutoPullsDependency(t *testing.T) {
	c, foo, bar, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	if err := dc.MarkInstall(foo, true, false); err != nil {
		t.Fatalf("MarkInstall(foo): %v", err)
	}

	barState := dc.State(bar)
	if barState.Mode != Install {
		t.Fatalf("bar mode = %v, want Install", barState.Mode)
	}
	if !barState.Flags.has(Auto) {
		t.Fatal("bar should carry the Auto flag: it was pulled in, not requested directly")
	}
	if barState.InstallVer != c.Package(bar).Versions[0] {
		t.Fatal("bar should be installed at its newest candidate (2.0)")
	}
}

func TestMarkInstallRefusesHeld(t *testing.T) {
	c, foo, _, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)
	dc.State(foo).Flags |= Held

	if err := dc.MarkInstall(foo, false, false); err == nil {
		t.Fatal("expected MarkInstall to refuse a held package without overrideHold")
	}
	if err := dc.MarkInstall(foo, false, true); err != nil {
		t.Fatalf("overrideHold should bypass the hold: %v", err)
	}
}

func TestMarkDeleteRefusesProtectedInstall(t *testing.T) {
	c, foo, _, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	if err := dc.MarkInstall(foo, false, false); err != nil {
		t.Fatalf("MarkInstall(foo): %v", err)
	}
	dc.State(foo).Flags |= Protected

	if err := dc.MarkDelete(foo, false); err == nil {
		t.Fatal("expected MarkDelete to refuse a Protected package that is also marked Install")
	}
}

func TestMarkKeepResetsToCurrentVer(t *testing.T) {
	c, foo, _, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)
	fooVer := c.Package(foo).Versions[0]
	c.Package(foo).CurrentVer = fooVer

	if err := dc.MarkInstall(foo, false, false); err != nil {
		t.Fatal(err)
	}
	dc.MarkKeep(foo)

	state := dc.State(foo)
	if state.Mode != Keep || state.InstallVer != fooVer {
		t.Fatalf("MarkKeep left state %+v, want Mode=Keep InstallVer=%v", state, fooVer)
	}
}

func TestUpdateFlagsInstallBrokenWhenDependencyUnresolved(t *testing.T) {
	c, foo, bar, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	// Install foo but deliberately leave bar uninstalled (no autoInstall):
	// foo's critical Depends on bar is unmet.
	if err := dc.MarkInstall(foo, false, false); err != nil {
		t.Fatal(err)
	}
	dc.State(bar).Mode = Delete
	dc.State(bar).InstallVer = 0
	dc.Update()

	if !dc.State(foo).InstallBroken {
		t.Fatal("foo should be InstallBroken: its Depends on bar is unsatisfied in the Install view")
	}
}

func TestUpdateVersionedDepNotSatisfiedByUnversionedProvide(t *testing.T) {
	c, foo, bar, baz := buildFixture(t)
	bazVer := c.Package(baz).Versions[0]
	c.NewProvides(bazVer, "bar", "", cache.ProvidesExplicit)

	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	if err := dc.MarkInstall(foo, false, false); err != nil {
		t.Fatal(err)
	}
	if err := dc.MarkInstall(baz, false, false); err != nil {
		t.Fatal(err)
	}
	dc.State(bar).Mode = Delete
	dc.State(bar).InstallVer = 0
	dc.Update()

	// foo's dependency on bar is versioned (>= 1.0); an unversioned provide
	// from baz must NOT satisfy it per satisfiedByProvides's versioned-dep
	// guard.
	if !dc.State(foo).InstallBroken {
		t.Fatal("a versioned dependency should not be satisfied by an unversioned provide")
	}
}

func TestMarkAndSweepFlagsUnreachableAutoPackageAsGarbage(t *testing.T) {
	c, foo, bar, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	if err := dc.MarkInstall(foo, true, false); err != nil {
		t.Fatal(err)
	}
	// bar was auto-installed to satisfy foo; now drop foo's need for it by
	// marking foo deleted, and reinstall bar standalone to simulate "already
	// on disk, auto-installed, nothing needs it any more".
	barState := dc.State(bar)
	barState.Mode = Install
	barState.InstallVer = c.Package(bar).Versions[0]
	barState.Flags |= Auto

	if err := dc.MarkDelete(foo, false); err != nil {
		t.Fatal(err)
	}

	dc.MarkAndSweep()

	if !dc.State(bar).Flags.has(Garbage) {
		t.Fatal("bar should be Garbage: it is Auto-installed and nothing reachable from a root depends on it any more")
	}
}

func TestMarkAndSweepKeepsExplicitInstallAsRoot(t *testing.T) {
	c, foo, bar, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	if err := dc.MarkInstall(foo, true, false); err != nil {
		t.Fatal(err)
	}
	dc.MarkAndSweep()

	if dc.State(foo).Flags.has(Garbage) {
		t.Fatal("foo was an explicit, non-auto install request: it must never be Garbage")
	}
	if dc.State(bar).Flags.has(Garbage) {
		t.Fatal("bar is reachable from foo, a root: it must not be Garbage")
	}
}

func TestActionGroupDefersSweepUntilOutermostClose(t *testing.T) {
	c, foo, _, _ := buildFixture(t)
	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	outer := dc.Begin()
	inner := dc.Begin()
	if err := dc.MarkInstall(foo, true, false); err != nil {
		t.Fatal(err)
	}
	if !dc.sweepPending {
		t.Fatal("a sweep should be pending while any action group is open")
	}
	inner.Close()
	if !dc.sweepPending {
		t.Fatal("closing the inner group must not run the sweep while the outer group is still open")
	}
	outer.Close()
	if dc.sweepPending {
		t.Fatal("closing the outermost group must run the deferred sweep")
	}
}

func TestCompareProvidersPrefersCurrentlyInstalled(t *testing.T) {
	c, _, bar, _ := buildFixture(t)
	versions := c.Package(bar).Versions // [2.0, 1.0]
	v2, v1 := versions[0], versions[1]
	c.Package(bar).CurrentVer = v1

	pol := &fakePolicy{c: c}
	dc := New(c, pol, lexCompare)

	if got := dc.CompareProviders(bar, v1, v2); got >= 0 {
		t.Fatalf("CompareProviders(v1, v2) = %d, want < 0: the currently installed version should be preferred", got)
	}
}
