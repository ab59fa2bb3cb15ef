package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/policy"

	"github.com/debcore/apt/internal/log"
)

// policyCommand prints each named package's installed and candidate
// versions, the cmd/apt analogue of `apt-cache policy`: a thin read-only
// pass over internal/policy.GetCandidate with no depcache/solver involved.
func policyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "policy PACKAGE...",
		Short: "show installed and candidate versions for packages",
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

			for _, name := range args {
				pkg := c.FindPkg(name, c.NativeArch)
				if pkg == 0 {
					log.Warn("unable to locate package %s", name)
					continue
				}
				printPolicy(c, pol, pkg)
			}
			return nil
		},
	}
}

func printPolicy(c *cache.Cache, pol *policy.Policy, pkg cache.PkgID) {
	p := c.Package(pkg)
	candidate := pol.GetCandidate(pkg)

	fmt.Printf("%s:\n", pkgName(c, pkg))
	fmt.Printf("  Installed: %s\n", verStr(c, p.CurrentVer))
	fmt.Printf("  Candidate: %s\n", verStr(c, candidate))
	fmt.Println("  Version table:")
	for _, ver := range p.Versions {
		marker := " "
		if ver == p.CurrentVer {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, verStr(c, ver))
	}
}
