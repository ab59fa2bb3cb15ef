package planner

import (
	"github.com/debcore/apt/internal/acquire"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/depcache"
	"github.com/debcore/apt/internal/errstack"
)

// BuildInstallPlan walks every package dc marks Install (including ones
// marked Auto by the recursive dependency walk) and builds one Acquire Item
// per package whose candidate isn't already the installed version, per §2's
// "install" share of the download-plan table. archivesDir is where fetched
// .debs land, matching Acquire::Archives.
func BuildInstallPlan(dc *depcache.DepCache, debFiles DebFiles, archivesDir string, diags *errstack.Diagnostics) (*Plan, error) {
	c := dc.Cache
	plan := &Plan{}

	for id := 1; id <= c.PackageCount(); id++ {
		pkg := cache.PkgID(id)
		st := dc.State(pkg)
		if st.Mode != depcache.Install {
			continue
		}
		ver := st.CandidateVer
		if ver == 0 {
			diags.Add(errstack.Error, "package %d marked for install has no candidate version", id)
			continue
		}
		if ver == c.Package(pkg).CurrentVer && st.Flags&depcache.Reinstall == 0 {
			continue
		}

		deb, ok := debFiles[ver]
		if !ok {
			diags.Add(errstack.Error, "no archive file recorded for version %d", ver)
			continue
		}
		root, ok := archiveURI(c, ver)
		if !ok {
			diags.Add(errstack.Error, "no release file recorded for version %d", ver)
			continue
		}

		it := &acquire.Item{
			URI:            joinURI(root, deb.Filename),
			Destination:    debDestination(c, ver, archivesDir),
			ExpectedHashes: hashesFrom(deb.MD5, deb.SHA256),
			ExpectedSize:   deb.Size,
			HashesRequired: true,
		}
		plan.Items = append(plan.Items, it)
	}

	return plan, nil
}
