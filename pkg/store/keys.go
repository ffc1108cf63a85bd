package store

import (
	"encoding/binary"
	"strings"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// Key prefixes for mubase storage, following the teacher's single-byte
// prefix convention (pkg/storage/badger.go) extended with the additional
// tables spec.md §3 names.
const (
	prefixNode           = byte(0x01) // node:<id> -> encoded Node
	prefixEdge           = byte(0x02) // edge:<id> -> encoded Edge
	prefixIdxNodeType    = byte(0x03) // idx:node:type:<type>:<id> -> nil
	prefixIdxNodeName    = byte(0x04) // idx:node:name:<name>:<id> -> nil
	prefixIdxNodeFile    = byte(0x05) // idx:node:file:<path>:<id> -> nil
	prefixIdxNodeComplex = byte(0x06) // idx:node:complexity:<be-uint32>:<id> -> nil
	prefixIdxEdgeSource  = byte(0x07) // idx:edge:source:<id>:<edgeID> -> nil
	prefixIdxEdgeTarget  = byte(0x08) // idx:edge:target:<id>:<edgeID> -> nil
	prefixIdxEdgeType    = byte(0x09) // idx:edge:type:<type>:<edgeID> -> nil
	prefixMetadata       = byte(0x0A) // meta:<key> -> value
	prefixEmbedding      = byte(0x0B) // embed:<nodeID>:<model> -> encoded Embedding
	prefixSnapshot       = byte(0x0C) // snap:<id> -> encoded Snapshot
	prefixSnapshotByCmt  = byte(0x0D) // snapbycommit:<commit> -> id
	prefixNodeHistory    = byte(0x0E) // nhist:<snapID>:<nodeID> -> encoded NodeHistory
	prefixEdgeHistory    = byte(0x0F) // ehist:<snapID>:<edgeID> -> encoded EdgeHistory
	prefixPattern        = byte(0x10) // pattern:<id> -> encoded Pattern
	prefixMemory         = byte(0x11) // memory:<id> -> encoded Memory
	prefixCodebaseStat   = byte(0x12) // stat:<key> -> encoded CodebaseStat
)

const sep = byte(0x00)

func keyNode(id model.NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func keyEdge(id model.EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func keyIdxNodeType(t model.NodeType, id model.NodeID) []byte {
	return joinKey(prefixIdxNodeType, string(t), string(id))
}

func prefixIdxNodeTypeScan(t model.NodeType) []byte {
	return joinKey(prefixIdxNodeType, string(t))
}

func keyIdxNodeName(name string, id model.NodeID) []byte {
	return joinKey(prefixIdxNodeName, strings.ToLower(name), string(id))
}

func prefixIdxNodeNameScan(name string) []byte {
	return joinKey(prefixIdxNodeName, strings.ToLower(name))
}

func keyIdxNodeFile(path string, id model.NodeID) []byte {
	return joinKey(prefixIdxNodeFile, path, string(id))
}

func prefixIdxNodeFileScan(path string) []byte {
	return joinKey(prefixIdxNodeFile, path)
}

func keyIdxNodeComplexity(complexity int, id model.NodeID) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(int32(complexity)))
	k := []byte{prefixIdxNodeComplex}
	k = append(k, b[:]...)
	k = append(k, sep)
	k = append(k, []byte(id)...)
	return k
}

// prefixIdxNodeComplexFloor returns the scan-start key for "complexity >= n".
func prefixIdxNodeComplexFloor(n int) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(int32(n)))
	return append([]byte{prefixIdxNodeComplex}, b[:]...)
}

func keyIdxEdgeSource(nodeID model.NodeID, edgeID model.EdgeID) []byte {
	return joinKey(prefixIdxEdgeSource, string(nodeID), string(edgeID))
}

func prefixIdxEdgeSourceScan(nodeID model.NodeID) []byte {
	return joinKey(prefixIdxEdgeSource, string(nodeID))
}

func keyIdxEdgeTarget(nodeID model.NodeID, edgeID model.EdgeID) []byte {
	return joinKey(prefixIdxEdgeTarget, string(nodeID), string(edgeID))
}

func prefixIdxEdgeTargetScan(nodeID model.NodeID) []byte {
	return joinKey(prefixIdxEdgeTarget, string(nodeID))
}

func keyIdxEdgeType(t model.EdgeType, edgeID model.EdgeID) []byte {
	return joinKey(prefixIdxEdgeType, string(t), string(edgeID))
}

func prefixIdxEdgeTypeScan(t model.EdgeType) []byte {
	return joinKey(prefixIdxEdgeType, string(t))
}

func keyMetadata(k string) []byte {
	return append([]byte{prefixMetadata}, []byte(k)...)
}

func keyEmbedding(nodeID model.NodeID, modelName string) []byte {
	return joinKey(prefixEmbedding, string(nodeID), modelName)
}

func prefixEmbeddingScan(nodeID model.NodeID) []byte {
	return joinKey(prefixEmbedding, string(nodeID))
}

func keySnapshot(id string) []byte {
	return append([]byte{prefixSnapshot}, []byte(id)...)
}

func keySnapshotByCommit(commit string) []byte {
	return append([]byte{prefixSnapshotByCmt}, []byte(commit)...)
}

func keyNodeHistory(snapshotID string, nodeID model.NodeID) []byte {
	return joinKey(prefixNodeHistory, snapshotID, string(nodeID))
}

func prefixNodeHistorySnapshotScan(snapshotID string) []byte {
	return joinKey(prefixNodeHistory, snapshotID)
}

func keyEdgeHistory(snapshotID string, edgeID model.EdgeID) []byte {
	return joinKey(prefixEdgeHistory, snapshotID, string(edgeID))
}

func prefixEdgeHistorySnapshotScan(snapshotID string) []byte {
	return joinKey(prefixEdgeHistory, snapshotID)
}

func keyPattern(id string) []byte {
	return append([]byte{prefixPattern}, []byte(id)...)
}

func keyMemory(id string) []byte {
	return append([]byte{prefixMemory}, []byte(id)...)
}

func keyCodebaseStat(k string) []byte {
	return append([]byte{prefixCodebaseStat}, []byte(k)...)
}

func joinKey(prefix byte, parts ...string) []byte {
	k := []byte{prefix}
	for i, p := range parts {
		if i > 0 {
			k = append(k, sep)
		}
		k = append(k, []byte(p)...)
	}
	return k
}

func encodeUint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func decodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// lastSegment returns the final 0x00-separated segment of an index key,
// which by construction is always the referenced node/edge id.
func lastSegment(key []byte) string {
	idx := -1
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == sep {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ""
	}
	return string(key[idx+1:])
}
