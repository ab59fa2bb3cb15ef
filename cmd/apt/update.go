package main

import (
	"github.com/spf13/cobra"

	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/log"
)

// updateCommand rebuilds the binary cache image from whatever index files
// are already present under listsDir, the cmd/apt analogue of `apt-get
// update` minus the actual network fetch (an Acquire front end's job, kept
// out of this demonstrator per spec.md §1).
func updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "rebuild the package cache from local index files",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.NoColor = *noLogColor
			log.Info("Reading package lists")

			sess, err := buildSession()
			if err != nil {
				return log.Failed(err)
			}
			reportDiagnostics(sess.diags)
			if sess.diags.HasFatal() {
				return log.Failed(errstack.Diagnostic{Severity: errstack.Fatal, Message: "aborting update"})
			}
			log.Drop()

			log.Info("Writing package cache")
			if err := writeCacheImage(sess); err != nil {
				return log.Failed(err)
			}
			return log.Done()
		},
	}
}

// reportDiagnostics prints every accumulated diagnostic through
// internal/log at the matching severity, the same taxonomy §7 describes.
func reportDiagnostics(diags *errstack.Diagnostics) {
	for _, d := range diags.All() {
		switch d.Severity {
		case errstack.Fatal, errstack.Error:
			log.Error("%s", d.Message)
		case errstack.Warning:
			log.Warn("%s", d.Message)
		default:
			log.Notice("%s", d.Message)
		}
	}
}
