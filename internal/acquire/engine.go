package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/term"
	"golang.org/x/sync/errgroup"
)

// ProgressSink receives periodic Pulse reports and decides whether the run
// continues. Returning false cancels the run, per §5's cancellation model.
type ProgressSink interface {
	Pulse(p Pulse) (keepGoing bool)
}

// Pulse is one progress tick, per §4.5: "total bytes, bytes fetched, items
// done, items total, current per-worker partial size and cps." Percent is
// the blended 0.8*bytes + 0.2*items metric; ShowETA is false (and ETA zero)
// when the sink should suppress it (CPS too low, or remaining time > 2 days).
type Pulse struct {
	TotalBytes   int64
	BytesDone    int64
	ItemsTotal   int
	ItemsDone    int
	CurrentItems []string
	CPS          float64
	Percent      float64
	ETA          time.Duration
	ShowETA      bool
	TermWidth    int
}

// workerEvent is one message read off a worker's stdout, tagged with which
// queue/worker produced it — the unit the engine's single select loop
// dispatches on.
type workerEvent struct {
	queue *Queue
	msg   *Message
	err   error
}

// Engine is the single-threaded event loop coordinating every Queue. Each
// Worker's blocking protocol reads happen on their own goroutine (per the
// §9 design note, "owned async task with two framed byte streams"); those
// goroutines only ever write to the shared events channel the engine's Run
// loop selects on, so all queue/item mutation stays on one goroutine.
type Engine struct {
	Sink         ProgressSink
	PulseInterval time.Duration
	MaxPipeDepth int
	SandboxUser  string

	queues map[string]*Queue
	events chan workerEvent

	totalBytes int64
	bytesDone  int64
	itemsTotal int
	itemsDone  int
	startedAt  time.Time
	cancelled  bool
}

// NewEngine returns an Engine ready to have queues added and Run called.
func NewEngine(sink ProgressSink) *Engine {
	return &Engine{
		Sink:          sink,
		PulseInterval: time.Second,
		MaxPipeDepth:  10,
		queues:        map[string]*Queue{},
		events:        make(chan workerEvent, 64),
	}
}

// QueueFor returns the named queue, creating it (and spawning its worker
// from binaryPath) if it doesn't exist yet.
func (e *Engine) QueueFor(name, binaryPath, scheme string) (*Queue, error) {
	if q, ok := e.queues[name]; ok {
		return q, nil
	}
	w, err := SpawnWorker(binaryPath, scheme, e.SandboxUser)
	if err != nil {
		return nil, err
	}
	q := NewQueue(name, e.MaxPipeDepth)
	q.Worker = w
	q.Config = w.Config
	e.queues[name] = q
	go e.pump(q)
	return q, nil
}

// pump is the per-worker read goroutine: it blocks on ReadMessage and
// forwards every result to the engine's single events channel, never
// touching Queue/Item state itself.
func (e *Engine) pump(q *Queue) {
	for {
		msg, err := q.Worker.ReadMessage()
		e.events <- workerEvent{queue: q, msg: msg, err: err}
		if err != nil {
			return
		}
	}
}

// Enqueue adds it to the named queue (creating/spawning it first if
// necessary), returning the possibly-coalesced Item.
func (e *Engine) Enqueue(name, binaryPath, scheme string, it *Item, owner Owner) (*Item, error) {
	q, err := e.QueueFor(name, binaryPath, scheme)
	if err != nil {
		return nil, err
	}
	merged := q.Enqueue(it, owner)
	if merged == it {
		e.itemsTotal++
		e.totalBytes += it.ExpectedSize
	}
	return merged, nil
}

// Run executes the main loop of §4.5: cycle every queue, then select
// between worker events and the pulse ticker until every queue is drained
// or the progress sink cancels the run.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = time.Now()
	for _, q := range e.queues {
		q.Cycle()
	}

	ticker := time.NewTicker(e.PulseInterval)
	defer ticker.Stop()

	for e.toFetch() > 0 && !e.cancelled {
		select {
		case <-ctx.Done():
			e.cancelled = true
			return ctx.Err()
		case ev := <-e.events:
			if err := e.handle(ev); err != nil {
				return err
			}
		case <-ticker.C:
			if e.Sink != nil && !e.Sink.Pulse(e.pulse()) {
				e.cancelled = true
			}
		}
	}
	return e.shutdownAll(false)
}

func (e *Engine) toFetch() int {
	n := 0
	for _, q := range e.queues {
		n += q.Remaining()
	}
	return n
}

// handle processes one worker protocol message against its queue's state,
// per the codes documented in §6.
func (e *Engine) handle(ev workerEvent) error {
	q := ev.queue
	if ev.err != nil {
		// Worker process died or closed its pipe: every item still in
		// flight for it fails outright (§4.5 "mark Error/AuthError").
		for _, it := range q.Worker.inFlight {
			it.MarkFailed("", fmt.Errorf("acquire: worker for %s exited: %w", q.Name, ev.err))
			e.itemsDone++
		}
		return nil
	}

	m := ev.msg
	switch m.Code {
	case CodeURIStart:
		if it := q.Worker.Current; it != nil {
			it.ExpectedSize = m.GetInt("Size")
		}
	case CodeURIDone:
		it := e.ackItem(q, m)
		if it == nil {
			return nil
		}
		it.bytesDone = it.ExpectedSize
		it.MarkDone()
		e.bytesDone += it.ExpectedSize
		e.itemsDone++
		q.Cycle()
	case CodeURIFailure:
		it := e.ackItem(q, m)
		if it == nil {
			return nil
		}
		reason := FailReason(m.Get("FailReason"))
		if q.Requeue(it) {
			// fail-fallover: re-queued with the next alternate URI; it
			// remains outstanding rather than counting as done.
			q.Cycle()
			return nil
		}
		it.MarkFailed(reason, fmt.Errorf("acquire: %s", m.Get("Message")))
		e.itemsDone++
		q.Cycle()
	case CodeLog, CodeStatus:
		// Informational only; nothing for the engine to act on.
	case CodeAuthRequired, CodeMediaChange:
		// Front-end interaction is out of scope (§1); a real integration
		// wires these to a prompt. Here the fetch simply fails the item.
		if it := q.Worker.Current; it != nil {
			it.MarkFailed("", fmt.Errorf("acquire: %s requires interactive input, unsupported", m.Header))
			e.itemsDone++
		}
	case CodeGeneralFailure:
		return fmt.Errorf("acquire: worker for %s: general failure: %s", q.Name, m.Get("Message"))
	}
	return nil
}

// ackItem resolves a 201/400 response to its in-flight Item, using the
// pipelining mis-order recovery of §4.5/§8 when the worker supports
// pipelining: it first tries the oldest in-flight item, and falls back to
// matching by hash if that item's expected hash disagrees with what came
// back.
func (e *Engine) ackItem(q *Queue, m *Message) *Item {
	if !q.Worker.Config.Pipeline {
		return q.Worker.AckFirst()
	}
	for algo := range q.Worker.inFlight[0].ExpectedHashes {
		got := m.Get(algo + "-Hash")
		if got == "" {
			continue
		}
		if it := q.Worker.AckByHash(algo, got); it != nil {
			return it
		}
	}
	return q.Worker.AckFirst()
}

// pulse computes the current Pulse snapshot, per §4.5's blended percent and
// ETA-suppression rules.
func (e *Engine) pulse() Pulse {
	elapsed := time.Since(e.startedAt).Seconds()
	cps := 0.0
	if elapsed > 0 {
		cps = float64(e.bytesDone) / elapsed
	}

	bytesPct, itemsPct := 0.0, 0.0
	if e.totalBytes > 0 {
		bytesPct = float64(e.bytesDone) / float64(e.totalBytes)
	}
	if e.itemsTotal > 0 {
		itemsPct = float64(e.itemsDone) / float64(e.itemsTotal)
	}
	percent := 0.8*bytesPct + 0.2*itemsPct

	var eta time.Duration
	showETA := false
	if cps > 1024 { // suppress ETA when throughput is too low to be meaningful
		remaining := float64(e.totalBytes-e.bytesDone) / cps
		if remaining <= 2*24*3600 {
			eta = time.Duration(remaining) * time.Second
			showETA = true
		}
	}

	var current []string
	for _, q := range e.queues {
		if q.Worker != nil && q.Worker.Current != nil && q.Worker.Current.Status == Fetching {
			current = append(current, q.Worker.Current.URI)
		}
	}

	return Pulse{
		TotalBytes:   e.totalBytes,
		BytesDone:    e.bytesDone,
		ItemsTotal:   e.itemsTotal,
		ItemsDone:    e.itemsDone,
		CurrentItems: current,
		CPS:          cps,
		Percent:      percent,
		ETA:          eta,
		ShowETA:      showETA,
		TermWidth:    termWidth(),
	}
}

// termWidth reads the controlling terminal's column count via
// github.com/moby/term, falling back to 80 when stdout isn't a terminal
// (redirected to a file, running under a test harness, ...).
func termWidth() int {
	ws, err := term.GetWinsize(os.Stdout.Fd())
	if err != nil || ws.Width == 0 {
		return 80
	}
	return int(ws.Width)
}

// shutdownAll calls Shutdown on every queue's worker, per §4.5 step 3:
// "Shutdown(final=false) on queues so persistent method processes... survive
// the run."
func (e *Engine) shutdownAll(final bool) error {
	g := new(errgroup.Group)
	for _, q := range e.queues {
		q := q
		g.Go(func() error {
			if q.Worker == nil {
				return nil
			}
			return q.Worker.Shutdown(!final)
		})
	}
	return g.Wait()
}

// Clean deletes every regular file under dir not named lock, partial,
// lost+found, or a basename present in keep, per §4.5's Clean operation.
func Clean(dir string, keep map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if name == "lock" || name == "partial" || name == "lost+found" || keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
