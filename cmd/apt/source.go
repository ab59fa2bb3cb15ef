package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/log"
	"github.com/debcore/apt/internal/planner"
	"github.com/debcore/apt/internal/policy"
)

var (
	sourceVersion = pflag.StringP("source-version", "V", "", "fetch this exact source version instead of the newest")
	buildDep      = pflag.Bool("build-dep", false, "also resolve and report the source package's build-dependencies")
)

// sourceCommand fetches a source package's .dsc/tarball/diff set, and
// optionally resolves its build-dependencies against the current cache,
// per §2's "source-fetch"/"build-dep" download-plan shares.
func sourceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "source PACKAGE",
		Short: "fetch a source package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.NoColor = *noLogColor

			sess, err := openOrBuildSession()
			if err != nil {
				return err
			}
			reportDiagnostics(sess.diags)

			rec, ok := planner.FindSource(sess.gen.Sources, args[0], *sourceVersion)
			if !ok {
				return fmt.Errorf("unable to find source package for %s", args[0])
			}

			dir, err := listsDir()
			if err != nil {
				return err
			}
			home, err := homeDir()
			if err != nil {
				return err
			}
			destDir := filepath.Join(home, "sources", rec.Package+"-"+rec.Version)

			diags := errstack.New()
			plan, err := planner.BuildSourceFetchPlan(archiveURI(dir), rec, destDir, diags)
			if err != nil {
				return err
			}
			reportDiagnostics(diags)

			log.Info(fmt.Sprintf("Fetching source %s %s", rec.Package, rec.Version))
			if err := runPlan(context.Background(), plan, sess.conf.MaxPipeDepth); err != nil {
				return log.Failed(err)
			}
			log.Done()

			if *buildDep {
				c := sess.gen.Cache
				pol := policy.New(c, sess.conf)
				resolved := planner.BuildDepPlan(c, pol, rec, diags)
				reportDiagnostics(diags)
				for _, ver := range resolved {
					log.Notice("build-dep: %s", verStr(c, ver))
				}
			}
			return nil
		},
	}
}
