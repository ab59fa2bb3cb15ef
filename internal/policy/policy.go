// Package policy implements candidate version selection (§4.3): for each
// package, the highest-priority version whose file is not NotSource,
// respecting NotAutomatic/ButAutomaticUpgrades and any configured pins, plus
// IsImportantDep's Recommends/Suggests gating. It is also where the real
// dpkg version-comparator lives, injected into cache.VersionComparator and
// depcache.DepCache.Compare so that neither of those packages needs to
// import a comparison algorithm directly.
package policy

import (
	"path/filepath"
	"strings"

	"pault.ag/go/debian/version"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/aptconf"
	"github.com/debcore/apt/internal/cache"
)

// Compare orders two dpkg version strings using pault.ag/go/debian/version,
// the same comparator the real apt/dpkg toolchain uses for epoch:upstream-revision
// ordering. It satisfies cache.VersionComparator.
func Compare(a, b string) int {
	av, aerr := version.Parse(a)
	bv, berr := version.Parse(b)
	if aerr != nil || berr != nil {
		// An unparseable string can appear in hand-rolled test fixtures or a
		// malformed index; fall back to a total order rather than panicking,
		// matching dpkg's own leniency here.
		return strings.Compare(a, b)
	}
	return version.Compare(av, bv)
}

// Policy selects candidate versions and classifies dependency importance
// against a Cache, honoring an aptconf.Config's pins and recommends/suggests
// settings. It satisfies depcache.Policy structurally.
type Policy struct {
	Cache *cache.Cache
	Conf  aptconf.Config
}

// New returns a Policy reading candidates and importance from c under conf.
func New(c *cache.Cache, conf aptconf.Config) *Policy {
	return &Policy{Cache: c, Conf: conf}
}

// GetCandidate returns the version of pkg the policy would install given
// the current pins: a version matched by a pin of priority >= 1000, or
// >= 500 when pkg has no installed version, wins outright (see
// pinnedVersion); otherwise the highest-priority version among those not
// excluded by NotAutomatic/ButAutomaticUpgrades.
func (p *Policy) GetCandidate(pkg cache.PkgID) cache.VerID {
	c := p.Cache
	versions := c.Package(pkg).Versions
	if len(versions) == 0 {
		return 0
	}

	name := c.Arena.String(arena.Package, c.Package(pkg).Name)
	if pinned := p.pinnedVersion(name, versions); pinned != 0 {
		return pinned
	}

	var best cache.VerID
	var bestPriority int
	for _, ver := range versions {
		v := c.Version(ver)
		prio, ok := p.versionPriority(v)
		if !ok {
			continue
		}
		if best == 0 || prio > bestPriority {
			best, bestPriority = ver, prio
		}
	}
	if best != 0 {
		return best
	}
	// Nothing survived the NotAutomatic/ButAutomaticUpgrades filter: fall
	// back to the newest version outright rather than leaving the package
	// candidate-less, matching apt's own behavior when every file offering
	// it is held back.
	return versions[0]
}

// versionPriority computes a version's selection priority across every
// file it appears in (a version present in more than one index takes the
// best file's priority), and reports false if every file excludes it.
func (p *Policy) versionPriority(v *cache.Version) (int, bool) {
	c := p.Cache
	best := -1
	sawAutomaticSource := false
	sawAny := false

	for _, vfID := range v.Files {
		vf := c.VerFile(vfID)
		pf := c.PkgFile(vf.File)
		if pf.NotSource {
			continue
		}
		sawAny = true

		rel := c.RelFile(pf.RelFile)
		notAutomatic := rel.NotAutomatic && !rel.ButAutomaticUpgrades
		if !notAutomatic {
			sawAutomaticSource = true
		}

		prio := int(v.Priority)
		if prio > best {
			best = prio
		}
	}
	if !sawAny {
		return 0, false
	}
	if !sawAutomaticSource {
		// Every offering file is NotAutomatic without ButAutomaticUpgrades:
		// apt never auto-selects this version for a first-time install. The
		// caller's no-candidates fallback still picks it up if nothing else
		// qualifies.
		return 0, false
	}
	return best, true
}

// pinnedVersion returns the version of versions matched by the
// highest-priority pin whose priority is high enough to win outright
// (>=1000, or >=500 when the package has no currently installed version),
// or 0 if no pin applies.
func (p *Policy) pinnedVersion(pkgName string, versions []cache.VerID) cache.VerID {
	c := p.Cache
	var bestVer cache.VerID
	var bestPin aptconf.PinPriority = -1

	for _, pin := range p.Conf.Pins {
		if !globMatch(pin.Package, pkgName) {
			continue
		}
		for _, ver := range versions {
			verStr := c.Arena.String(arena.Version, c.Version(ver).VerStr)
			if !globMatch(pin.Pattern, verStr) {
				continue
			}
			if pin.Priority > bestPin {
				bestPin, bestVer = pin.Priority, ver
			}
		}
	}
	if bestPin >= 1000 {
		return bestVer
	}
	if bestPin >= 500 && c.Package(c.Version(bestVer).Pkg).CurrentVer == 0 {
		return bestVer
	}
	return 0
}

func globMatch(pattern, name string) bool {
	if pattern == "*" || pattern == "" {
		return true
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// IsImportantDep reports whether dep should be treated as policy-relevant
// for install-broken purposes (§4.2/§4.3): always true for critical kinds,
// true for Recommends when install-recommends is configured (globally or
// for the owning version's section), true for Suggests when
// install-suggests is configured.
func (p *Policy) IsImportantDep(dep cache.DepID) bool {
	c := p.Cache
	d := c.Dep(dep)
	if d.Kind.Critical() {
		return true
	}
	section := c.Arena.String(arena.Section, c.Version(d.Parent).Section)
	switch d.Kind {
	case cache.Recommends:
		return p.Conf.RecommendsFor(section)
	case cache.Suggests:
		return p.Conf.InstallSuggests
	default:
		return false
	}
}
