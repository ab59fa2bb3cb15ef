package planner

import (
	"fmt"

	"pault.ag/go/debian/changelog"
	"pault.ag/go/debian/dependency"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/indexmerge"
	"github.com/debcore/apt/internal/policy"
)

// ResolverPolicy is the subset of internal/policy's Policy BuildDepPlan
// needs: candidate selection by package ID, the GetCandidate half of the
// interface internal/depcache depends on.
type ResolverPolicy interface {
	GetCandidate(pkg cache.PkgID) cache.VerID
}

// ChangelogTarget identifies the source package a build-dep plan resolves
// against, read the same way the teacher's main.go reads
// debian/changelog: changelog.ParseFileOne gives the exact (Source,
// Version) pair a local build tree targets.
type ChangelogTarget struct {
	Source  string
	Version string
}

// TargetFromChangelog mirrors the teacher's own
// `changelog.ParseFileOne("debian/changelog")` call, extracting just the
// (Source, Version) pair FindSource needs.
func TargetFromChangelog(path string) (ChangelogTarget, error) {
	entry, err := changelog.ParseFileOne(path)
	if err != nil {
		return ChangelogTarget{}, fmt.Errorf("planner: reading %s: %w", path, err)
	}
	return ChangelogTarget{Source: entry.Source, Version: entry.Version.Version}, nil
}

// BuildDepPlan resolves a SourceRecord's Build-Depends/Build-Depends-Indep/
// Build-Depends-Arch relations against c using pol, returning one
// resolved Version per satisfied alternative and recording an Error
// diagnostic per relation with no installable alternative, per §2's
// "build-dep" share of the download-plan table.
func BuildDepPlan(c *cache.Cache, pol ResolverPolicy, rec indexmerge.SourceRecord, diags *errstack.Diagnostics) []cache.VerID {
	var resolved []cache.VerID
	resolveInto := func(dep dependency.Dependency) {
		for _, rel := range dep.Relations {
			ver, ok := resolveRelation(c, pol, rel)
			if !ok {
				diags.Add(errstack.Error, "unsatisfiable build-dependency %q for source package %s", rel.String(), rec.Package)
				continue
			}
			resolved = append(resolved, ver)
		}
	}

	resolveInto(rec.BuildDepends)
	resolveInto(rec.BuildDependsIndep)
	resolveInto(rec.BuildDependsArch)

	return resolved
}

// resolveRelation finds the first possibility in rel whose package's
// current policy candidate satisfies the named version constraint, the
// same "first alternative that resolves wins" rule MarkInstall's OR-group
// walk uses in internal/depcache.
func resolveRelation(c *cache.Cache, pol ResolverPolicy, rel dependency.Relation) (cache.VerID, bool) {
	for _, poss := range rel.Possibilities {
		pkgID := c.FindPkg(poss.Name, c.NativeArch)
		if pkgID == 0 {
			continue
		}
		ver := pol.GetCandidate(pkgID)
		if ver == 0 {
			continue
		}
		if poss.Version == nil {
			return ver, true
		}
		verStr := c.Arena.String(arena.Version, c.Version(ver).VerStr)
		if satisfiesOperator(poss.Version.Operator, verStr, poss.Version.Version.String()) {
			return ver, true
		}
	}
	return 0, false
}

func satisfiesOperator(op, have, want string) bool {
	cmp := policy.Compare(have, want)
	switch op {
	case "<<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "=":
		return cmp == 0
	case ">=":
		return cmp >= 0
	case ">>":
		return cmp > 0
	default:
		return true
	}
}
