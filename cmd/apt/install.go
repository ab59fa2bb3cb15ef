package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/depcache"
	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/log"
	"github.com/debcore/apt/internal/planner"
	"github.com/debcore/apt/internal/policy"
	"github.com/debcore/apt/internal/solver"
)

// installCommand resolves a transaction that installs every named package
// (and its dependencies) and fetches the resulting .debs into the archives
// directory, per §2's "install" download-plan share. It stops short of
// invoking dpkg to unpack/configure them, an external collaborator per
// spec.md §1.
func installCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install PACKAGE...",
		Short: "resolve and fetch packages to install",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.NoColor = *noLogColor

			sess, err := openOrBuildSession()
			if err != nil {
				return err
			}
			reportDiagnostics(sess.diags)

			c := sess.gen.Cache
			pol := policy.New(c, sess.conf)
			dc := depcache.New(c, pol, policy.Compare)
			sv := solver.New(c, dc)

			for _, name := range args {
				pkg := c.FindPkg(name, c.NativeArch)
				if pkg == 0 {
					return fmt.Errorf("unable to locate package %s", name)
				}
				sv.RequireInstall(pkg)
			}

			log.Info("Resolving dependencies")
			if err := sv.Resolve(); err != nil {
				return log.Failed(err)
			}
			log.Done()

			dc.MarkAndSweep()
			reportTransaction(c, dc)

			home, err := homeDir()
			if err != nil {
				return err
			}
			diags := errstack.New()
			plan, err := planner.BuildInstallPlan(dc, sess.gen.DebFiles, filepath.Join(home, "archives"), diags)
			if err != nil {
				return err
			}
			reportDiagnostics(diags)

			if len(plan.Items) == 0 {
				log.Notice("nothing to fetch")
				return nil
			}

			log.Info(fmt.Sprintf("Fetching %d package(s)", len(plan.Items)))
			if err := runPlan(context.Background(), plan, sess.conf.MaxPipeDepth); err != nil {
				return log.Failed(err)
			}
			return log.Done()
		},
	}
}

// reportTransaction prints one line per package the solver decided to
// touch, mirroring apt-get's "The following NEW packages will be
// installed" summary without reproducing its column layout.
func reportTransaction(c *cache.Cache, dc *depcache.DepCache) {
	for id := 1; id <= c.PackageCount(); id++ {
		pkg := cache.PkgID(id)
		st := dc.State(pkg)
		switch st.Mode {
		case depcache.Install:
			log.Notice("install %s (%s)", pkgName(c, pkg), verStr(c, st.CandidateVer))
		case depcache.Delete:
			log.Notice("remove %s", pkgName(c, pkg))
		}
	}
}
