package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NewNodeID derives the deterministic identifier for a code node (module,
// class, or function). Per spec §3 the identifier is a function of
// {type, file_path, qualified_name} only — never of line numbers,
// docstrings, or other properties that change without the entity's
// identity changing.
func NewNodeID(t NodeType, filePath, qualifiedName string) NodeID {
	return NodeID(hashParts(string(t), filePath, qualifiedName))
}

// NewExternalNodeID derives the deterministic identifier for an external
// dependency node, a function of the import target alone.
func NewExternalNodeID(importTarget string) NodeID {
	return NodeID(hashParts(string(NodeExternal), importTarget))
}

// NewEdgeID derives the deterministic identifier for an edge. Per spec §3
// a (source, target, type) triple is unique, so the ID is a pure function
// of those three fields.
func NewEdgeID(source, target NodeID, t EdgeType) EdgeID {
	return EdgeID(hashParts(string(t), string(source), string(target)))
}

func hashParts(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // separator, prevents "ab"+"c" colliding with "a"+"bc"
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// QualifiedName joins a module-relative path of names with ".", the
// convention used for class/function qualified names throughout the
// Kernel (e.g. "ClassName.method_name").
func QualifiedName(parts ...string) string {
	filtered := parts[:0]
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, ".")
}
