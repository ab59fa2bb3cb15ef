package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/debcore/apt/internal/aptconf"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/indexmerge"
	"github.com/debcore/apt/internal/policy"
)

// session bundles the pieces every subcommand needs after index merge: the
// generator (cache plus the Sources/DebFiles side tables), the resolved
// config, and the accumulated diagnostics from building it.
type session struct {
	gen   *indexmerge.Generator
	conf  aptconf.Config
	diags *errstack.Diagnostics
}

// listsDir is where already-fetched Release/Packages/Sources files live.
// Fetching them over the network is the sources-list tokenizer and Acquire
// front end's job, both explicit external collaborators (spec.md §1); this
// demonstrator merges whatever index files are already on disk under it,
// the same way real apt merges /var/lib/apt/lists after update has run.
func listsDir() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "lists")
	return dir, nil
}

// cacheImagePath is where the merged binary cache image is written/read.
func cacheImagePath() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "pkgcache.bin"), nil
}

// statusPath is the dpkg status file this run's installed-package state is
// read from.
func statusPath() string {
	return filepath.Join(*rootDir, "var/lib/dpkg/status")
}

// buildSession merges every index file found under listsDir plus the dpkg
// status file into a fresh Cache, per §4.6's merge ordering: Release first,
// then each Packages/Sources file registered against it, then the status
// file last (so CurrentVer reflects what's actually unpacked). It does not
// consult a prior cache image — that reuse path is openOrBuildSession's
// job.
func buildSession() (*session, error) {
	declared := append([]string{*nativeArch}, *archDecls...)
	c := cache.New(*nativeArch, declared)
	gen := indexmerge.NewGenerator(c, policy.Compare)
	diags := errstack.New()

	dir, err := listsDir()
	if err != nil {
		return nil, err
	}
	registry := indexmerge.NewRegisteredPkgFiles()

	files, err := discoverIndexFiles(gen, dir, registry, diags)
	if err != nil {
		return nil, err
	}
	files = append(files, indexmerge.NewStatusFile(statusPath(), registry))

	if err := gen.MergeAll(files, diags); err != nil {
		return nil, fmt.Errorf("apt: merging indexes: %w", err)
	}

	conf := aptconf.Default(*nativeArch)
	conf.Architectures = declared
	return &session{gen: gen, conf: conf, diags: diags}, nil
}

// openOrBuildSession returns a session for a subcommand. It always
// rebuilds through buildSession: it neither loads the image at
// cacheImagePath nor writes one back. Sources and DebFiles
// (internal/planner's inputs) live only on the Generator that merge
// produced and are not part of the persisted image.
func openOrBuildSession() (*session, error) {
	return buildSession()
}

// writeCacheImage persists sess's Cache to cacheImagePath, stamping
// SourceMTime with now so a later run's Matches check only rebuilds when an
// index file changes after this point.
func writeCacheImage(sess *session) error {
	path, err := cacheImagePath()
	if err != nil {
		return err
	}
	return sess.gen.Cache.Write(path, time.Now().Unix())
}
