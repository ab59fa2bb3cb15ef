package depcache

// ActionGroup is a scoped begin/end: every MarkInstall/MarkDelete/MarkKeep
// nested inside one defers the global MarkAndSweep pass until the
// outermost group closes, per §4.2 "Action groups". Exiting on any path —
// including a panic recovered by the caller — must still run the deferred
// sweep exactly once, which is why Close is meant to be called via defer.
type ActionGroup struct {
	dc     *DepCache
	closed bool
}

// Begin opens an action group. Nested Begin/Close pairs only defer the
// sweep; only the outermost Close actually runs it.
func (dc *DepCache) Begin() *ActionGroup {
	dc.actionGroupDepth++
	return &ActionGroup{dc: dc}
}

// Close ends the action group. Calling Close twice on the same group is a
// no-op.
func (ag *ActionGroup) Close() {
	if ag.closed {
		return
	}
	ag.closed = true
	ag.dc.actionGroupDepth--
	if ag.dc.actionGroupDepth == 0 && ag.dc.sweepPending {
		ag.dc.sweepPending = false
		ag.dc.MarkAndSweep()
	}
}

// deferOrSweep runs MarkAndSweep immediately when no action group is open,
// or marks one pending for the outermost Close otherwise.
func (dc *DepCache) deferOrSweep() {
	if dc.actionGroupDepth > 0 {
		dc.sweepPending = true
		return
	}
	dc.MarkAndSweep()
}
