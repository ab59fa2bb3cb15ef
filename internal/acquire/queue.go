package acquire

import (
	"net/url"
)

// QueueMode selects how URIs are grouped into Queues, per §4.5.
type QueueMode uint8

const (
	// QueueModeAccess puts every URI of a given scheme into one queue.
	QueueModeAccess QueueMode = iota
	// QueueModeHost puts every URI into a (scheme, host) queue, up to a
	// configured limit, beyond which hosts hash into existing slots.
	QueueModeHost
)

// QueueName computes the queue a URI belongs to under mode, per §4.5's
// naming rules. hostLimit bounds the number of distinct host queues per
// scheme under QueueModeHost; 0 means unlimited.
func QueueName(rawURI string, mode QueueMode, hostLimit int, existingHosts map[string]int) string {
	u, err := url.Parse(rawURI)
	if err != nil {
		return rawURI
	}
	if mode == QueueModeAccess || u.Host == "" {
		return u.Scheme
	}

	host := u.Host
	if hostLimit > 0 {
		if _, seen := existingHosts[host]; !seen && len(existingHosts) >= hostLimit {
			// Past the limit, hash into one of the existing slots rather
			// than opening a new one; §9 flags this as observably
			// non-deterministic in the source and leaves the exact
			// collision rule unspecified, so this picks the slot
			// deterministically by name hash instead of randomly.
			host = pickExistingHost(host, existingHosts)
		}
	}
	return u.Scheme + "://" + host
}

func pickExistingHost(name string, existing map[string]int) string {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	names := make([]string, 0, len(existing))
	for k := range existing {
		names = append(names, k)
	}
	if len(names) == 0 {
		return name
	}
	// Sort for determinism before indexing by hash, since Go map iteration
	// order is randomized.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names[h%uint32(len(names))]
}

// queueEntry wraps one Item with the bookkeeping the Queue needs for
// duplicate coalescing and the symlink farm.
type queueEntry struct {
	item          *Item
	extraDestPaths []string // owners whose destination path differs from item.Destination
}

// Queue is an ordered set of items and the worker(s) serving them.
type Queue struct {
	Name    string
	Config  MethodConfig
	Worker  *Worker
	MaxPipe int

	entries []*queueEntry
	byURI   map[string]*queueEntry // coalescing index, keyed by URI
}

// NewQueue returns an empty queue named name.
func NewQueue(name string, maxPipe int) *Queue {
	return &Queue{Name: name, MaxPipe: maxPipe, byURI: map[string]*queueEntry{}}
}

// coalesceKey identifies "the same fetch" for duplicate coalescing: the
// URI alone, per §4.5/S5 — two owners naming entirely different hash
// families (one MD5, one SHA256) for the same URI must still coalesce onto
// one fetch. The hash families themselves are merged via Hashes.Merge and
// re-checked per owner on arrival.
func coalesceKey(it *Item) string {
	return it.URI
}

// Enqueue adds it to the queue, coalescing with an existing entry for the
// same URI if one is queued or in flight: owner is attached
// to the existing item instead of fetching a second time, and differing
// destination paths are tracked for the symlink farm (§4.5 "duplicate
// coalescing" / "symlink farm").
func (q *Queue) Enqueue(it *Item, owner Owner) *Item {
	it.AddOwner(owner)
	key := coalesceKey(it)
	if existing, ok := q.byURI[key]; ok {
		existing.item.ExpectedHashes = existing.item.ExpectedHashes.Merge(it.ExpectedHashes)
		if existing.item.Destination != it.Destination {
			existing.extraDestPaths = append(existing.extraDestPaths, it.Destination)
		}
		existing.item.AddOwner(owner)
		return existing.item
	}
	entry := &queueEntry{item: it}
	q.entries = append(q.entries, entry)
	q.byURI[key] = entry
	return it
}

// ExtraDestinations returns the additional destination paths owners asked
// for on it, beyond its primary Destination — the symlink farm's targets.
func (q *Queue) ExtraDestinations(it *Item) []string {
	if e, ok := q.byURI[coalesceKey(it)]; ok {
		return e.extraDestPaths
	}
	return nil
}

// Cycle implements §4.5's cycle algorithm: find the highest priority among
// currently Fetching items, then dispatch Idle items whose priority is at
// least that, until the worker's pipe depth cap is hit or nothing eligible
// remains. Priority here is simply queue order (earlier-enqueued first),
// matching the common case of a FIFO acquire plan; callers needing a
// different priority scheme reorder entries before calling Cycle.
func (q *Queue) Cycle() []*Item {
	if q.Worker == nil {
		return nil
	}
	var dispatched []*Item
	for q.Worker.CanPipeline(q.MaxPipe) {
		idx := -1
		for i, e := range q.entries {
			if e.item.Status == Idle {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		it := q.entries[idx].item
		if err := q.Worker.Dispatch(it); err != nil {
			it.MarkFailed("", err)
			break
		}
		dispatched = append(dispatched, it)
	}
	return dispatched
}

// Remaining returns how many items in the queue still need fetching (Idle
// or Fetching).
func (q *Queue) Remaining() int {
	n := 0
	for _, e := range q.entries {
		if e.item.Status == Idle || e.item.Status == Fetching {
			n++
		}
	}
	return n
}

// Requeue resets a failed item to Idle with its next alternate URI, per
// §4.5's fail-fallover: "if the item has alternate URIs, re-queue it with
// the next one." Returns false if no alternate remains.
func (q *Queue) Requeue(it *Item) bool {
	if len(it.AlternateURIs) == 0 {
		return false
	}
	next := it.AlternateURIs[0]
	it.AlternateURIs = it.AlternateURIs[1:]
	delete(q.byURI, coalesceKey(it))
	it.URI = next
	it.Status = Idle
	q.byURI[coalesceKey(it)] = &queueEntry{item: it}
	return true
}
