// Command apt is a thin front door over the library packages in
// internal/: it constructs a Cache, merges indexes into it, layers a
// DepCache overlay, asks the solver for a transaction, turns that
// transaction into a download plan, and hands the plan to the Acquire
// engine. It is a demonstrator of how those pieces wire together, not a
// reimplementation of apt-get/apt-cache.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/debcore/apt/internal/log"
)

const (
	// Program is the name of the program.
	Program = "apt"
	// Version of the program.
	Version = "0.1.0"
	// Description of the program.
	Description = "Debian package acquisition, dependency resolution and caching."
)

var (
	noLogColor  = pflag.BoolP("no-log-color", "c", false, "do not colorize log output")
	cacheDir    = pflag.StringP("cache-dir", "C", "", "where the binary package cache image and lists are kept")
	rootDir     = pflag.StringP("root-dir", "R", "/", "root against which dpkg's status file is resolved")
	nativeArch  = pflag.StringP("arch", "a", "amd64", "native architecture of the target system")
	archDecls   = pflag.StringArrayP("declare-arch", "D", nil, "additional foreign architecture to declare (repeatable)")
)

func main() {
	root := &cobra.Command{
		Use:     fmt.Sprintf("%s [FLAGS ...] COMMAND", Program),
		Short:   Description,
		Version: Version,
	}

	root.SetHelpCommand(&cobra.Command{Hidden: true})
	root.DisableFlagsInUseLine = true
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentFlags().AddFlagSet(pflag.CommandLine)

	root.AddCommand(
		updateCommand(),
		policyCommand(),
		installCommand(),
		removeCommand(),
		sourceCommand(),
	)

	if err := root.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

// homeDir returns *cacheDir, defaulting to a per-program temp directory the
// same way the teacher's main.go derives its build/cache dirs from
// os.TempDir() when the flag is left unset.
func homeDir() (string, error) {
	if *cacheDir != "" {
		return *cacheDir, nil
	}
	dir := os.TempDir() + "/" + Program
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}
	return dir, nil
}
