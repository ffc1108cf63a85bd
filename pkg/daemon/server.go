package daemon

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/context"
	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// buildRouter assembles the daemon's HTTP surface (spec.md §6). Routing
// follows the teacher's own style: a plain http.ServeMux with prefix
// registrations, path segments parsed by hand inside each handler rather
// than a pattern-matching router.
func (d *Daemon) buildRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", d.handleStatus)
	mux.HandleFunc("/nodes/", d.gate.withAuthz(false, d.handleNodes))
	mux.HandleFunc("/query", d.gate.withAuthz(true, d.handleQuery))
	mux.HandleFunc("/context", d.gate.withAuthz(false, d.handleContext))
	mux.HandleFunc("/impact", d.gate.withAuthz(false, d.handleImpact))
	mux.HandleFunc("/ancestors", d.gate.withAuthz(false, d.handleAncestors))
	mux.HandleFunc("/cycles", d.gate.withAuthz(false, d.handleCycles))
	mux.HandleFunc("/export", d.gate.withAuthz(false, d.handleExport))
	mux.HandleFunc("/ws", d.hub.ServeWS)
	mux.Handle("/metrics", d.metrics.Handler())

	return mux
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	nodeCount, edgeCount := d.graphCounts()

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": time.Since(d.startedAt).Seconds(),
		"node_count":     nodeCount,
		"edge_count":     edgeCount,
		"schema_version": store.CurrentSchemaVersion,
		"ws_connections": d.hub.ConnectionCount(),
	})
}

// graphCounts reads node/edge totals directly from the mubase rather
// than the in-memory graph, so /status stays accurate even before the
// first Load.
func (d *Daemon) graphCounts() (nodes, edges int) {
	_ = d.store.View(func(txn *badger.Txn) error {
		ns, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		es, err := store.ScanAllEdges(txn)
		if err != nil {
			return err
		}
		nodes, edges = len(ns), len(es)
		return nil
	})
	return nodes, edges
}

func (d *Daemon) handleNodes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/nodes/")
	parts := strings.SplitN(rest, "/", 2)
	id := model.NodeID(parts[0])

	if len(parts) == 2 && parts[1] == "neighbors" {
		d.handleNeighbors(w, r, id)
		return
	}

	var node *model.Node
	err := d.store.View(func(txn *badger.Txn) error {
		n, err := store.GetNode(txn, id)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "node not found: "+string(id))
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (d *Daemon) handleNeighbors(w http.ResponseWriter, r *http.Request, id model.NodeID) {
	dir := parseDirection(r.URL.Query().Get("direction"))
	depth := 1
	if v := r.URL.Query().Get("depth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			depth = n
		}
	}
	types := parseEdgeTypes(r.URL.Query().Get("types"))

	ids, err := d.graph.Neighbors(id, dir, depth, types...)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"node_ids": ids})
}

func parseDirection(v string) graph.Direction {
	switch v {
	case "in":
		return graph.DirIn
	case "both":
		return graph.DirBoth
	default:
		return graph.DirOut
	}
}

func parseEdgeTypes(v string) []model.EdgeType {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]model.EdgeType, 0, len(parts))
	for _, p := range parts {
		out = append(out, model.EdgeType(strings.TrimSpace(p)))
	}
	return out
}

type queryRequest struct {
	MUQL string `json:"muql"`
}

func (d *Daemon) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d.metrics.RecordQuery()
	res, err := d.executor.Run(req.MUQL)
	if err != nil {
		d.metrics.QueryErrors.Inc()
		writeJSON(w, http.StatusOK, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type contextRequest struct {
	Question  string `json:"question"`
	MaxTokens int    `json:"max_tokens"`
}

func (d *Daemon) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := context.DefaultConfig()
	if req.MaxTokens > 0 {
		cfg.MaxTokens = req.MaxTokens
	}

	res, err := d.extractor.Extract(req.Question, cfg)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type nodeRefRequest struct {
	Node      string   `json:"node"`
	EdgeTypes []string `json:"edge_types,omitempty"`
}

func (d *Daemon) handleImpact(w http.ResponseWriter, r *http.Request) {
	d.handleReachability(w, r, d.graph.Impact)
}

func (d *Daemon) handleAncestors(w http.ResponseWriter, r *http.Request) {
	d.handleReachability(w, r, d.graph.Ancestors)
}

func (d *Daemon) handleReachability(w http.ResponseWriter, r *http.Request, fn func(model.NodeID, ...model.EdgeType) ([]model.NodeID, error)) {
	var req nodeRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	types := make([]model.EdgeType, 0, len(req.EdgeTypes))
	for _, t := range req.EdgeTypes {
		types = append(types, model.EdgeType(t))
	}
	ids, err := fn(model.NodeID(req.Node), types...)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"node_ids": ids})
}

type cyclesRequest struct {
	EdgeTypes []string `json:"edge_types,omitempty"`
}

func (d *Daemon) handleCycles(w http.ResponseWriter, r *http.Request) {
	var req cyclesRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	types := make([]model.EdgeType, 0, len(req.EdgeTypes))
	for _, t := range req.EdgeTypes {
		types = append(types, model.EdgeType(t))
	}
	cycles, err := d.graph.FindCycles(types...)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles})
}

func (d *Daemon) handleExport(w http.ResponseWriter, r *http.Request) {
	var nodes []*model.Node
	var edges []*model.Edge
	err := d.store.View(func(txn *badger.Txn) error {
		var err error
		nodes, err = store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		edges, err = store.ScanAllEdges(txn)
		return err
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "edges": edges})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
