package daemon

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mu-kernel/mukernel/pkg/builder"
	mukernelcontext "github.com/mu-kernel/mukernel/pkg/context"
	"github.com/mu-kernel/mukernel/pkg/embedding"
	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/muql"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Daemon is the long-running watch-and-serve process (spec.md §4.7): it
// watches the project tree, keeps the mubase and Graph Engine current
// through debounced incremental builds, and exposes both over HTTP and
// WebSocket.
type Daemon struct {
	store     *store.Store
	graph     *graph.Engine
	executor  *muql.Executor
	extractor *mukernelcontext.Extractor

	watcher    *Watcher
	debouncer  *debouncer
	worker     *Worker
	hub        *Hub
	metrics    *Metrics
	gate       *adminGate
	httpServer *http.Server

	pidFile       string
	listenAddress string
	shutdownGrace time.Duration
	startedAt     time.Time

	logger  *log.Logger
	cancel  context.CancelFunc
	stopped bool
}

// Options configures a Daemon. Embedder may be nil, in which case
// POST /context falls back to entity and graph-proximity scoring alone
// (spec.md §4.5's vector term degrades to zero).
type Options struct {
	StorePath     string
	ListenAddress string
	AdminToken    string
	PIDFile       string
	ShutdownGrace time.Duration

	WatchRoot      string
	Extensions     []string
	IgnoredDirs    []string
	DebounceWindow time.Duration

	Parser   FileParser
	Embedder embedding.Provider

	Logger *log.Logger
}

// New opens the mubase, loads the Graph Engine, and wires the watcher,
// debouncer, worker, HTTP surface and WebSocket hub, but does not start
// any of them; call Start to begin serving.
func New(opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "mukernel-daemon: ", log.LstdFlags)
	}

	s, err := store.Open(opts.StorePath, store.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open mubase: %w", err)
	}

	g := graph.New()
	if err := g.Load(s); err != nil {
		s.Close()
		return nil, fmt.Errorf("load graph: %w", err)
	}

	var embedder mukernelcontext.Embedder
	if opts.Embedder != nil {
		embedder = &providerEmbedder{provider: opts.Embedder}
	}

	watcher, err := NewWatcher(opts.WatchRoot, opts.Extensions, opts.IgnoredDirs)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	gate, err := newAdminGate(opts.AdminToken)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("init admin gate: %w", err)
	}

	metrics := NewMetrics()
	hub := NewHub(logger)

	parser := opts.Parser
	if parser == nil {
		parser = FileParserFunc(func(path string) (model.ModuleDef, error) {
			return model.ModuleDef{}, fmt.Errorf("no FileParser configured for %s", path)
		})
	}
	worker := NewWorker(s, g, parser, hub, metrics, logger, 256)

	d := &Daemon{
		store:         s,
		graph:         g,
		executor:      muql.NewExecutor(s, g),
		extractor:     mukernelcontext.New(s, g, embedder),
		watcher:       watcher,
		worker:        worker,
		hub:           hub,
		metrics:       metrics,
		gate:          gate,
		pidFile:       opts.PIDFile,
		listenAddress: opts.ListenAddress,
		shutdownGrace: opts.ShutdownGrace,
		logger:        logger,
	}
	d.debouncer = newDebouncer(opts.DebounceWindow, d.debounceOut())
	return d, nil
}

// debounceOut returns the channel the debouncer flushes settled events
// onto; a buffered relay keeps DebounceDepth accurate without coupling
// the debouncer package to Worker.
func (d *Daemon) debounceOut() chan<- FileChange {
	relay := make(chan FileChange, 256)
	go func() {
		for ev := range relay {
			d.metrics.DebounceDepth.Dec()
			d.worker.Enqueue(ev)
		}
	}()
	return relay
}

// Start writes the PID file, refusing to start if one already points at
// a live process (spec.md §4.7), then launches the watcher, worker and
// HTTP server. It returns once the HTTP server is listening; Stop
// performs the graceful shutdown.
func (d *Daemon) Start() error {
	if err := writePIDFile(d.pidFile); err != nil {
		return err
	}
	d.startedAt = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	go d.watcher.Run()
	go d.worker.Run(ctx)
	go d.pumpWatchEvents(ctx)

	ln, err := net.Listen("tcp", d.listenAddress)
	if err != nil {
		cancel()
		removePIDFile(d.pidFile)
		return fmt.Errorf("listen on %s: %w", d.listenAddress, err)
	}
	d.httpServer = &http.Server{Handler: d.buildRouter()}
	go func() {
		if err := d.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.logger.Printf("daemon: http server stopped: %v", err)
		}
	}()

	d.logger.Printf("daemon: listening on %s", d.listenAddress)
	return nil
}

// pumpWatchEvents feeds every watcher event into the debouncer and counts
// it on the WatchEvents metric, until ctx is cancelled.
func (d *Daemon) pumpWatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.watcher.Events():
			d.metrics.WatchEvents.Inc()
			d.metrics.DebounceDepth.Inc()
			d.debouncer.Add(ev)
		case err := <-d.watcher.Errors():
			d.logger.Printf("daemon: watcher error: %v", err)
		}
	}
}

// Stop drains in-flight HTTP requests (bounded by ShutdownGrace), closes
// the WebSocket hub and mubase, and removes the PID file. Safe to call
// once; subsequent calls are no-ops.
func (d *Daemon) Stop() error {
	if d.stopped {
		return nil
	}
	d.stopped = true
	if d.cancel != nil {
		d.cancel()
	}
	if d.watcher != nil {
		d.watcher.Close()
	}
	if d.debouncer != nil {
		d.debouncer.Close()
	}
	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.shutdownGrace)
		defer cancel()
		if err := d.httpServer.Shutdown(ctx); err != nil {
			d.logger.Printf("daemon: forced http shutdown: %v", err)
		}
	}
	if d.hub != nil {
		d.hub.Close()
	}
	var storeErr error
	if d.store != nil {
		storeErr = d.store.Close()
	}
	if err := removePIDFile(d.pidFile); err != nil {
		return err
	}
	return storeErr
}

// providerEmbedder adapts pkg/embedding's context-taking, batch-capable
// Provider to the single-string Embedder the context extractor expects
// for the question text.
type providerEmbedder struct {
	provider embedding.Provider
}

func (p *providerEmbedder) Embed(text string) ([]float32, error) {
	return p.provider.Embed(context.Background(), text)
}

// RebuildAll forces a full rebuild of the mubase from defs and reloads the
// Graph Engine from the result.
func (d *Daemon) RebuildAll(defs []model.ModuleDef) (*builder.Result, error) {
	res, err := builder.New(d.store).Build(defs)
	if err != nil {
		return nil, err
	}
	if err := d.graph.Load(d.store); err != nil {
		return res, err
	}
	return res, nil
}
