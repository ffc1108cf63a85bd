package builder

import "github.com/mu-kernel/mukernel/pkg/model"

// resolver answers "does this import/inherits reference point at something
// already in the graph" during node/edge generation. A full build resolves
// against the batch currently being built; an incremental update resolves
// against the whole store, overlaid with the files being rebuilt right now
// so that two changed files which reference each other still resolve
// without a second pass.
type resolver struct {
	modulesByName map[string]model.NodeID
	// classes are matched first by fully-qualified name (Module.Class),
	// falling back to bare class name when the import/base token carries
	// no dots. First writer wins on a bare-name collision: spec.md §4.3
	// step 4 only requires *a* resolution to exist, and a source tree with
	// two classes named identically is rare enough that this is an
	// acceptable simplification.
	classesByQualified map[string]model.NodeID
	classesByBareName  map[string]model.NodeID
}

func newResolver() *resolver {
	return &resolver{
		modulesByName:      map[string]model.NodeID{},
		classesByQualified: map[string]model.NodeID{},
		classesByBareName:  map[string]model.NodeID{},
	}
}

func (r *resolver) addModule(name string, id model.NodeID) {
	r.modulesByName[name] = id
}

func (r *resolver) addClass(qualifiedName, bareName string, id model.NodeID) {
	r.classesByQualified[qualifiedName] = id
	if _, exists := r.classesByBareName[bareName]; !exists {
		r.classesByBareName[bareName] = id
	}
}

func (r *resolver) resolveModule(name string) (model.NodeID, bool) {
	id, ok := r.modulesByName[name]
	return id, ok
}

func (r *resolver) resolveClass(token string) (model.NodeID, bool) {
	if id, ok := r.classesByQualified[token]; ok {
		return id, true
	}
	id, ok := r.classesByBareName[token]
	return id, ok
}
