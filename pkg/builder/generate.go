package builder

import (
	"time"

	"github.com/mu-kernel/mukernel/pkg/model"
)

func moduleNodeID(def model.ModuleDef) model.NodeID {
	return model.NewNodeID(model.NodeModule, def.Path, def.Name)
}

func classNodeID(def model.ModuleDef, cls model.ClassDef) model.NodeID {
	return model.NewNodeID(model.NodeClass, def.Path, model.QualifiedName(def.Name, cls.Name))
}

func methodNodeID(def model.ModuleDef, cls model.ClassDef, fn model.FunctionDef) model.NodeID {
	return model.NewNodeID(model.NodeFunction, def.Path, model.QualifiedName(def.Name, cls.Name, fn.Name))
}

func funcNodeID(def model.ModuleDef, fn model.FunctionDef) model.NodeID {
	return model.NewNodeID(model.NodeFunction, def.Path, model.QualifiedName(def.Name, fn.Name))
}

// registerDeclarations pre-populates r with every module/class this def
// declares, so that a two-pass build (generate declarations for every
// file, then resolve imports/inherits across all of them) can resolve
// forward references regardless of file order.
func registerDeclarations(def model.ModuleDef, r *resolver) {
	r.addModule(def.Name, moduleNodeID(def))
	for _, cls := range def.Classes {
		r.addClass(model.QualifiedName(def.Name, cls.Name), cls.Name, classNodeID(def, cls))
	}
}

// generateModule emits every node and edge for a single module given a
// resolver already populated with every module/class declaration visible
// to this build (spec.md §4.3 steps 1-5).
func generateModule(def model.ModuleDef, r *resolver) ([]*model.Node, []*model.Edge) {
	now := time.Now()
	var nodes []*model.Node
	var edges []*model.Edge

	modID := moduleNodeID(def)
	nodes = append(nodes, &model.Node{
		ID:            modID,
		Type:          model.NodeModule,
		Name:          def.Name,
		QualifiedName: def.Name,
		FilePath:      def.Path,
		Language:      def.Language,
		Complexity:    moduleComplexity(def),
		ContentHash:   def.ContentHash,
		Properties: model.Props{
			"docstring": def.Docstring,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})

	var externals []*model.Node
	for _, imp := range def.Imports {
		e, ext := generateImportEdge(modID, imp, r)
		edges = append(edges, e)
		if ext != nil {
			externals = append(externals, ext)
		}
	}
	nodes = append(nodes, externals...)

	for _, cls := range def.Classes {
		cn, ce := generateClass(def, cls, modID, r)
		nodes = append(nodes, cn...)
		edges = append(edges, ce...)
	}

	for _, fn := range def.Functions {
		qn := model.QualifiedName(def.Name, fn.Name)
		id := funcNodeID(def, fn)
		nodes = append(nodes, functionNode(id, qn, def, fn, now))
		edges = append(edges, &model.Edge{
			ID:        model.NewEdgeID(modID, id, model.EdgeContains),
			Source:    modID,
			Target:    id,
			Type:      model.EdgeContains,
			CreatedAt: now,
		})
	}

	return nodes, edges
}

func generateImportEdge(fromModule model.NodeID, imp model.ImportDef, r *resolver) (*model.Edge, *model.Node) {
	now := time.Now()
	target := imp.Module
	props := model.Props{"names": imp.Names, "alias": imp.Alias, "is_from": imp.IsFrom, "is_dynamic": imp.IsDynamic}

	if id, ok := r.resolveModule(target); ok {
		return &model.Edge{
			ID:         model.NewEdgeID(fromModule, id, model.EdgeImports),
			Source:     fromModule,
			Target:     id,
			Type:       model.EdgeImports,
			Properties: props,
			CreatedAt:  now,
		}, nil
	}

	ext := externalNode(target)
	return &model.Edge{
		ID:         model.NewEdgeID(fromModule, ext.ID, model.EdgeImports),
		Source:     fromModule,
		Target:     ext.ID,
		Type:       model.EdgeImports,
		Properties: props,
		CreatedAt:  now,
	}, ext
}

// externalNode builds the external-dependency node for an unresolved
// import target. generateImportEdge calls it and returns the node next to
// the edge; since many modules can import the same external target, the
// caller dedupes these nodes by NodeID across the whole batch.
func externalNode(target string) *model.Node {
	now := time.Now()
	return &model.Node{
		ID:            model.NewExternalNodeID(target),
		Type:          model.NodeExternal,
		Name:          target,
		QualifiedName: target,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func generateClass(def model.ModuleDef, cls model.ClassDef, modID model.NodeID, r *resolver) ([]*model.Node, []*model.Edge) {
	now := time.Now()
	var nodes []*model.Node
	var edges []*model.Edge

	id := classNodeID(def, cls)
	var unresolved []string
	for _, base := range cls.Bases {
		if baseID, ok := r.resolveClass(base); ok {
			edges = append(edges, &model.Edge{
				ID:        model.NewEdgeID(id, baseID, model.EdgeInherits),
				Source:    id,
				Target:    baseID,
				Type:      model.EdgeInherits,
				CreatedAt: now,
			})
		} else {
			unresolved = append(unresolved, base)
		}
	}

	props := model.Props{
		"docstring":  cls.Docstring,
		"decorators": cls.Decorators,
		"bases":      cls.Bases,
	}
	if len(unresolved) > 0 {
		props["unresolved_bases"] = unresolved
	}

	nodes = append(nodes, &model.Node{
		ID:            id,
		Type:          model.NodeClass,
		Name:          cls.Name,
		QualifiedName: model.QualifiedName(def.Name, cls.Name),
		FilePath:      def.Path,
		Language:      def.Language,
		LineStart:     cls.LineStart,
		LineEnd:       cls.LineEnd,
		Complexity:    classComplexity(cls),
		ContentHash:   def.ContentHash,
		Properties:    props,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	edges = append(edges, &model.Edge{
		ID:        model.NewEdgeID(modID, id, model.EdgeContains),
		Source:    modID,
		Target:    id,
		Type:      model.EdgeContains,
		CreatedAt: now,
	})

	for _, m := range cls.Methods {
		mid := methodNodeID(def, cls, m)
		nodes = append(nodes, functionNode(mid, model.QualifiedName(def.Name, cls.Name, m.Name), def, m, now))
		edges = append(edges, &model.Edge{
			ID:        model.NewEdgeID(id, mid, model.EdgeContains),
			Source:    id,
			Target:    mid,
			Type:      model.EdgeContains,
			CreatedAt: now,
		})
	}

	return nodes, edges
}

func functionNode(id model.NodeID, qualifiedName string, def model.ModuleDef, fn model.FunctionDef, now time.Time) *model.Node {
	return &model.Node{
		ID:            id,
		Type:          model.NodeFunction,
		Name:          fn.Name,
		QualifiedName: qualifiedName,
		FilePath:      def.Path,
		Language:      def.Language,
		LineStart:     fn.LineStart,
		LineEnd:       fn.LineEnd,
		Complexity:    functionComplexity(fn),
		ContentHash:   def.ContentHash,
		Properties: model.Props{
			"docstring":      fn.Docstring,
			"decorators":     fn.Decorators,
			"params":         fn.Params,
			"return_type":    fn.ReturnType,
			"is_async":       fn.IsAsync,
			"is_static":      fn.IsStatic,
			"is_classmethod": fn.IsClassmethod,
			"is_property":    fn.IsProperty,
			"node_count":     fn.NodeCount,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
