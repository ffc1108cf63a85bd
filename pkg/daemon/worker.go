package daemon

import (
	"context"
	"log"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/builder"
	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Worker consumes debounced file-change events, re-parses the affected
// file via FileParser, applies the diff through the Incremental Builder,
// reloads the Graph Engine, and broadcasts per-node events to the Hub
// (spec.md §4.7).
type Worker struct {
	store   *store.Store
	graph   *graph.Engine
	builder *builder.Builder
	parser  FileParser
	hub     *Hub
	metrics *Metrics
	logger  *log.Logger

	queue chan FileChange
}

// NewWorker wires a Worker. queueSize bounds how many flushed debounce
// events may be pending before Enqueue blocks, applying backpressure to
// the watcher rather than growing memory unbounded.
func NewWorker(s *store.Store, g *graph.Engine, p FileParser, hub *Hub, m *Metrics, logger *log.Logger, queueSize int) *Worker {
	return &Worker{
		store:   s,
		graph:   g,
		builder: builder.New(s),
		parser:  p,
		hub:     hub,
		metrics: m,
		logger:  logger,
		queue:   make(chan FileChange, queueSize),
	}
}

// Enqueue submits a debounced event for processing.
func (w *Worker) Enqueue(ev FileChange) { w.queue <- ev }

// Run processes queued events in order until ctx is cancelled, matching
// spec.md §5's ordering guarantee: Store commits happen in the order
// events flushed from the debounce queue.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.queue:
			w.process(ev)
		}
	}
}

func (w *Worker) process(ev FileChange) {
	var def model.ModuleDef
	if ev.Kind == ChangeRemoved {
		def = model.ModuleDef{Path: ev.Path}
	} else {
		parsed, err := w.parser.ParseFile(ev.Path)
		if err != nil {
			// spec.md §7 *Parse*: non-fatal, the file's previous state is
			// retained. Record the failure and skip this event entirely
			// rather than calling Update, which would otherwise delete
			// every node for a file that merely failed to parse.
			w.logger.Printf("worker: parse %s: %v", ev.Path, err)
			w.metrics.BuildFailures.Inc()
			return
		}
		def = parsed
	}

	oldNodes, oldHashes := w.snapshotFile(ev.Path)
	res, err := w.builder.Update([]model.ModuleDef{def}, nil)
	if err != nil {
		w.logger.Printf("worker: update %s: %v", ev.Path, err)
		return
	}
	w.metrics.BuildsTotal.Inc()
	w.metrics.BuildFailures.Add(float64(len(res.Failures)))

	if err := w.graph.Load(w.store); err != nil {
		w.logger.Printf("worker: reload graph: %v", err)
	}

	w.broadcastDiff(ev.Path, oldNodes, oldHashes)
}

// snapshotFile reads the node set currently stored for path, before the
// builder applies this event's diff, so process can classify the
// post-update set into added/modified/removed.
func (w *Worker) snapshotFile(path string) ([]*model.Node, map[model.NodeID]string) {
	var nodes []*model.Node
	_ = w.store.View(func(txn *badger.Txn) error {
		var err error
		nodes, err = store.ScanNodesByFile(txn, path)
		return err
	})
	hashes := make(map[model.NodeID]string, len(nodes))
	for _, n := range nodes {
		hashes[n.ID] = n.ContentHash
	}
	return nodes, hashes
}

func (w *Worker) broadcastDiff(path string, oldNodes []*model.Node, oldHashes map[model.NodeID]string) {
	var newNodes []*model.Node
	_ = w.store.View(func(txn *badger.Txn) error {
		var err error
		newNodes, err = store.ScanNodesByFile(txn, path)
		return err
	})

	newIDs := make(map[model.NodeID]bool, len(newNodes))
	for _, n := range newNodes {
		newIDs[n.ID] = true
		if oldHash, existed := oldHashes[n.ID]; !existed {
			w.hub.Broadcast(NodeEvent{Kind: NodeAdded, NodeID: n.ID, Path: path})
		} else if oldHash != n.ContentHash {
			w.hub.Broadcast(NodeEvent{Kind: NodeModified, NodeID: n.ID, Path: path})
		}
	}
	for _, n := range oldNodes {
		if !newIDs[n.ID] {
			w.hub.Broadcast(NodeEvent{Kind: NodeRemoved, NodeID: n.ID, Path: path})
		}
	}
}
