package store

import (
	"encoding/json"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// The mubase stores every record as JSON. Badger is a pure byte-oriented
// KV store; JSON keeps the on-disk format simple to inspect and migrate,
// matching the teacher's own choice (pkg/storage/badger.go encodes Node
// and Edge as JSON rather than a binary format).

func encodeNode(n *model.Node) ([]byte, error) { return json.Marshal(n) }

func decodeNode(b []byte) (*model.Node, error) {
	var n model.Node
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeEdge(e *model.Edge) ([]byte, error) { return json.Marshal(e) }

func decodeEdge(b []byte) (*model.Edge, error) {
	var e model.Edge
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func encodeEmbedding(e *model.Embedding) ([]byte, error) { return json.Marshal(e) }

func decodeEmbedding(b []byte) (*model.Embedding, error) {
	var e model.Embedding
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func encodeSnapshot(s *model.Snapshot) ([]byte, error) { return json.Marshal(s) }

func decodeSnapshot(b []byte) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeNodeHistory(h *model.NodeHistory) ([]byte, error) { return json.Marshal(h) }

func decodeNodeHistory(b []byte) (*model.NodeHistory, error) {
	var h model.NodeHistory
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func encodeEdgeHistory(h *model.EdgeHistory) ([]byte, error) { return json.Marshal(h) }

func decodeEdgeHistory(b []byte) (*model.EdgeHistory, error) {
	var h model.EdgeHistory
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func encodePattern(p *model.Pattern) ([]byte, error) { return json.Marshal(p) }
func decodePattern(b []byte) (*model.Pattern, error) {
	var p model.Pattern
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeMemory(m *model.Memory) ([]byte, error) { return json.Marshal(m) }
func decodeMemory(b []byte) (*model.Memory, error) {
	var m model.Memory
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeCodebaseStat(s *model.CodebaseStat) ([]byte, error) { return json.Marshal(s) }
func decodeCodebaseStat(b []byte) (*model.CodebaseStat, error) {
	var s model.CodebaseStat
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
