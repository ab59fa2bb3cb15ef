package depcache

import (
	"fmt"

	"github.com/debcore/apt/internal/cache"
)

// MarkDelete marks pkg for removal, per §4.2. It is refused when pkg is a
// Protected package that is also the target of an explicit install
// request (Mode == Install): an explicit install and an explicit delete
// can never coexist for the same package, and Protected is how a caller
// says "this was my explicit choice, don't let automatic logic reverse
// it". purge additionally requests configuration removal.
//
// Packages belonging to a "never mark auto" section flip their Auto flag
// off on delete, since a just-deleted package that gets re-pulled in later
// should be treated as a fresh, non-automatic install rather than silently
// resurrected as automatic.
func (dc *DepCache) MarkDelete(pkg cache.PkgID, purge bool) error {
	state := dc.State(pkg)
	if state.Flags.has(Protected) && state.Mode == Install {
		return fmt.Errorf("depcache: %s is protected against removal", pkgName(dc.Cache, pkg))
	}

	state.Mode = Delete
	state.InstallVer = 0
	if purge {
		state.Flags |= Purge
	}
	if state.Flags.has(NeverMarkAuto) {
		state.Flags &^= Auto
	}

	dc.deferOrSweep()
	return nil
}

// MarkKeep resets pkg to its currently installed version, clearing any
// pending install/delete intent, per §4.2.
func (dc *DepCache) MarkKeep(pkg cache.PkgID) {
	state := dc.State(pkg)
	state.Mode = Keep
	state.InstallVer = dc.Cache.Package(pkg).CurrentVer
	dc.deferOrSweep()
}
