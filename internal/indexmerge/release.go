package indexmerge

import (
	"bytes"
	"os"
	"strings"

	"pault.ag/go/debian/control"

	"github.com/debcore/apt/internal/cache"
)

// releaseStanza mirrors the handful of Release fields §3 "Release file"
// needs the cache to carry: site, archive, codename, origin, label, trust
// flags. Real Release files carry far more (Date, Valid-Until, per-file
// hash lists consumed by the Acquire plan) but those are the Index Merge
// producers' concern, not the cache's.
type releaseStanza struct {
	control.Paragraph

	Origin               string
	Label                string
	Suite                string
	Codename             string
	Version              string
	NotAutomatic         string
	ButAutomaticUpgrades string `control:"But-Automatic-Upgrades"`
}

// RegisterRelease parses the Release/InRelease file at path (already
// verified or explicitly marked untrusted by the caller via
// VerifyInRelease/VerifyDetached) and registers it in gen's cache as a
// RelFile, per §4.6 step (a).
//
// site is the archive's root URI (the sources-list entry's URI, e.g.
// "http://deb.debian.org/debian"), since the Release file itself doesn't
// carry its own download origin; internal/planner joins it with a PkgFile's
// Filename to build an Acquire Item's URI.
func RegisterRelease(gen *Generator, site, path string, body []byte, trusted bool) (cache.RelFileID, error) {
	dec, err := control.NewDecoder(bytes.NewReader(body), nil)
	if err != nil {
		return 0, err
	}
	var rel releaseStanza
	if err := dec.Decode(&rel); err != nil {
		return 0, err
	}

	notAutomatic := strings.EqualFold(rel.NotAutomatic, "yes")
	butAutoUpgrade := strings.EqualFold(rel.ButAutomaticUpgrades, "yes")

	id := gen.Cache.NewReleaseFile(site, rel.Suite, rel.Codename, rel.Version, rel.Origin, rel.Label, trusted)
	relFile := gen.Cache.RelFile(id)
	relFile.NotAutomatic = notAutomatic
	relFile.ButAutomaticUpgrades = butAutoUpgrade
	return id, nil
}

// RegisterLocalFile registers a synthetic RelFile for locally-provided
// package files (the dpkg status file, a bare .deb import) that have no
// Release file of their own, per §4.1's PkgFile description: "RelFileID(0)
// for locally-provided files."
func RegisterLocalFile() cache.RelFileID { return 0 }

// statOrZero is a small convenience used by the status/.deb producers,
// which need a file's mtime/size but tolerate it being absent.
func statOrZero(path string) (mtime, size int64) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0
	}
	return info.ModTime().Unix(), info.Size()
}
