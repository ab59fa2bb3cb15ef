package acquire

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
)

// Worker is a running method subprocess: a binary implementing one URI
// scheme, speaking the line-based protocol of §6 over its own stdin/stdout.
// The engine reads each Worker's stdout on one goroutine per worker (see
// Engine.pump), which only forwards messages to the engine's event loop;
// all queue and item state is changed by that loop alone.
type Worker struct {
	Scheme string
	Config MethodConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *Reader

	Current    *Item
	PipeDepth  int
	pipelineOK bool // cleared for the remainder of the run on a detected mis-order (§5 ordering guarantees)

	inFlight []*Item // items sent but not yet acknowledged, in dispatch order
}

// SpawnWorker starts binaryPath (typically /usr/lib/apt/methods/<scheme>)
// as a method subprocess under sandboxUser, if set, and reads its initial
// 100 Capabilities announcement.
func SpawnWorker(binaryPath, scheme, sandboxUser string) (*Worker, error) {
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("acquire: %s: stdin pipe: %w", scheme, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("acquire: %s: stdout pipe: %w", scheme, err)
	}
	if err := applySandbox(cmd, sandboxUser); err != nil {
		return nil, fmt.Errorf("acquire: %s: sandbox user %q: %w", scheme, sandboxUser, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("acquire: %s: start: %w", scheme, err)
	}

	w := &Worker{
		Scheme:     scheme,
		cmd:        cmd,
		stdin:      stdin,
		reader:     NewReader(bufio.NewReader(stdout)),
		pipelineOK: true,
	}

	msg, err := w.reader.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("acquire: %s: reading capabilities: %w", scheme, err)
	}
	if msg.Code != CodeCapabilities {
		return nil, fmt.Errorf("acquire: %s: expected 100 Capabilities, got %d", scheme, msg.Code)
	}
	w.Config = ParseCapabilities(scheme, msg)
	return w, nil
}

// SendConfiguration sends a 601 Configuration dump, for methods that
// declared Send-Config.
func (w *Worker) SendConfiguration(fields map[string]string) error {
	m := NewMessage(CodeConfiguration, "Configuration")
	for k, v := range fields {
		m.Set(k, v)
	}
	return m.Encode(w.stdin)
}

// Dispatch sends a 600 URI Acquire for it and records it as in-flight.
func (w *Worker) Dispatch(it *Item) error {
	m := NewMessage(CodeURIAcquire, "URI Acquire")
	m.Set("URI", it.URI)
	m.Set("Filename", it.Destination)
	for algo, sum := range it.ExpectedHashes {
		m.Set(algo+"-Hash", sum)
	}
	if err := m.Encode(w.stdin); err != nil {
		return err
	}
	it.Status = Fetching
	w.Current = it
	w.inFlight = append(w.inFlight, it)
	w.PipeDepth++
	return nil
}

// CanPipeline reports whether this worker can take one more item before it
// must wait for acknowledgments, per §4.5's pipelining rule: below maxDepth
// in-flight items when pipelining is on, otherwise only when idle.
func (w *Worker) CanPipeline(maxDepth int) bool {
	if !w.Config.Pipeline || !w.pipelineOK {
		return w.PipeDepth == 0
	}
	return w.PipeDepth < maxDepth
}

// ReadMessage reads the next protocol message from the worker.
func (w *Worker) ReadMessage() (*Message, error) { return w.reader.ReadMessage() }

// AckFirst pops and returns the oldest in-flight item, decrementing
// PipeDepth: the normal, in-order case.
func (w *Worker) AckFirst() *Item {
	if len(w.inFlight) == 0 {
		return nil
	}
	it := w.inFlight[0]
	w.inFlight = w.inFlight[1:]
	w.PipeDepth--
	return it
}

// AckByHash finds and removes the in-flight item whose expected hash
// matches gotHash for algo, implementing the pipeline mis-order recovery of
// §8 property 7 / S6: a response naming a hash the front-of-queue item
// doesn't carry is matched against the rest of the in-flight set instead,
// and pipelining is disabled on this worker for the remainder of the run.
func (w *Worker) AckByHash(algo, gotHash string) *Item {
	for i, it := range w.inFlight {
		if it.ExpectedHashes[algo] == gotHash {
			w.inFlight = append(w.inFlight[:i], w.inFlight[i+1:]...)
			w.PipeDepth--
			if i != 0 {
				w.pipelineOK = false
			}
			return it
		}
	}
	return nil
}

// Shutdown closes the worker's stdin (observed by the worker as EOF, per
// §5's cancellation model: "the engine sends no explicit cancel") and,
// unless keepAlive is requested for a persistent method, waits for exit.
func (w *Worker) Shutdown(keepAlive bool) error {
	w.stdin.Close()
	if keepAlive && !w.Config.NeedsCleanup {
		return nil
	}
	return w.cmd.Wait()
}
