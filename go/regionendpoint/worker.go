package regionendpoint

import (
	"github.com/estuary/flow/go/regioncdc"
	"github.com/estuary/flow/go/regionmetrics"
	log "github.com/sirupsen/logrus"
)

// command is a closure dispatched onto a worker's single goroutine. Every
// Delegate mutation flows through here so that one goroutine ever touches a
// given Delegate, matching the cooperative single-threaded worker model.
type command func(regions map[uint64]*regioncdc.Delegate)

// worker owns a partition of the process's regions and serially drains a
// command queue against them. It never locks: command is the only path by
// which regions is touched.
type worker struct {
	index   int
	regions map[uint64]*regioncdc.Delegate
	cmds    chan command
}

func newWorker(index int, queueDepth int) *worker {
	return &worker{
		index:   index,
		regions: make(map[uint64]*regioncdc.Delegate),
		cmds:    make(chan command, queueDepth),
	}
}

// run drains the command queue until it is closed. It is the worker's only
// goroutine.
func (w *worker) run() {
	for cmd := range w.cmds {
		func() {
			defer func() {
				if r := recover(); r != nil {
					regionmetrics.IncDecodeErrors(w.index)
					// §7: a decode or invariant-violation panic indicates
					// corruption or an upstream bug and is process-fatal,
					// not locally recoverable — log.Fatal flushes the
					// structured record and then calls os.Exit(1).
					log.WithFields(log.Fields{"worker": w.index, "panic": r}).
						Fatal("region delegate command panicked")
				}
			}()
			cmd(w.regions)
		}()
	}
}

// submit enqueues cmd for execution on this worker's goroutine. It does not
// block the caller beyond the queue being full, matching the non-blocking
// contract the rest of the system expects of inbound dispatch.
func (w *worker) submit(cmd command) {
	w.cmds <- cmd
}

// stop closes the command queue; run returns once it has drained.
func (w *worker) stop() {
	close(w.cmds)
}
