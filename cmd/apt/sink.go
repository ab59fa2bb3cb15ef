package main

import (
	"github.com/debcore/apt/internal/acquire"
	"github.com/debcore/apt/internal/log"
)

// statusSink prints one status line per Pulse, the demonstrator's stand-in
// for the teacher's own streamed container-build progress: internal/log's
// Info/Drop pairing isn't a fit for a repeating pulse, so this writes
// directly rather than going through the open/close status-line helpers.
type statusSink struct{}

func (statusSink) Pulse(p acquire.Pulse) bool {
	log.Notice("%d/%d items, %.0f%%", p.ItemsDone, p.ItemsTotal, p.Percent*100)
	return true
}

// planOwner is the acquire.Owner every plan Item is enqueued under; it only
// needs to satisfy the interface; per-item completion is not otherwise
// actioned in this demonstrator, since the unpack/configure step (dpkg
// itself) is out of scope per spec.md §1.
type planOwner struct{}

func (planOwner) Finished(it *acquire.Item, err error) {
	if err != nil {
		log.Warn("%s: %v", it.URI, err)
		return
	}
	log.Notice("fetched %s", it.Destination)
}
