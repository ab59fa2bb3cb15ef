package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/debcore/apt/internal/depcache"
	"github.com/debcore/apt/internal/log"
	"github.com/debcore/apt/internal/policy"
	"github.com/debcore/apt/internal/solver"
)

var purge = pflag.BoolP("purge", "P", false, "remove configuration files along with the package")

// removeCommand resolves a transaction that deletes every named package,
// per §2's HoldOrDelete group. There is no download plan on the remove
// side: dpkg --remove runs directly against what's already unpacked, an
// external collaborator per spec.md §1, so this only reports the resolved
// transaction.
func removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove PACKAGE...",
		Short: "resolve a package removal transaction",
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
				if *purge {
					dc.State(pkg).Flags |= depcache.Purge
				}
				sv.RequireDelete(pkg)
			}

			log.Info("Resolving dependencies")
			if err := sv.Resolve(); err != nil {
				return log.Failed(err)
			}
			log.Done()

			dc.MarkAndSweep()
			reportTransaction(c, dc)
			return nil
		},
	}
}
