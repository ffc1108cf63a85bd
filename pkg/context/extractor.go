package context

import (
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// Extractor runs the smart-context pipeline of spec.md §4.5 end to end:
// intent classification, entity extraction, candidate selection, graph
// expansion, relevance scoring, token budgeting, and MU-text rendering.
type Extractor struct {
	store    *store.Store
	graph    *graph.Engine
	embedder Embedder
}

// New builds an Extractor. embedder may be nil, in which case candidate
// selection falls back to name matching and graph expansion alone.
func New(s *store.Store, g *graph.Engine, embedder Embedder) *Extractor {
	return &Extractor{store: s, graph: g, embedder: embedder}
}

// Extract runs the full pipeline for question under cfg.
func (x *Extractor) Extract(question string, cfg Config) (*Result, error) {
	intent, intentConf := classifyIntent(question)
	strat := strategyFor(intent, cfg)

	entities := extractEntities(question)

	var (
		candidates []*model.Node
		stats      Stats
		vecScores  map[model.NodeID]float64
		distances  map[model.NodeID]int
	)

	err := x.store.View(func(txn *badger.Txn) error {
		allNodes, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(allNodes))
		for _, n := range allNodes {
			known[n.Name] = true
			known[strings.ToLower(n.Name)] = true
		}
		entities = markKnown(entities, known)
		stats.EntitiesFound = len(entities)

		seedIDs := map[model.NodeID]bool{}
		byID := make(map[model.NodeID]*model.Node, len(allNodes))
		for _, n := range allNodes {
			byID[n.ID] = n
		}

		for _, e := range entities {
			for _, n := range allNodes {
				if matchesEntityName(n, e) {
					seedIDs[n.ID] = true
				}
			}
		}

		embeddings, err := store.ScanAllEmbeddings(txn)
		if err != nil {
			return err
		}
		vecScores = vectorScores(x.embedder, question, embeddings, model.EmbeddingCode, cfg.VectorSearchLimit)
		stats.VectorMatches = len(vecScores)
		for id := range vecScores {
			seedIDs[id] = true
		}

		seeds := make([]model.NodeID, 0, len(seedIDs))
		for id := range seedIDs {
			seeds = append(seeds, id)
		}
		sortNodeIDs(seeds)
		stats.CandidatesBefore = len(seeds)

		depth := cfg.ExpandDepth + strat.expandDepthBias
		if depth < 0 {
			depth = 0
		}
		var expandedIDs []model.NodeID
		if depth > 0 && x.graph != nil {
			expandedIDs = expandCandidates(x.graph, seeds, depth, cfg.MaxExpansionNodes)
		} else {
			expandedIDs = seeds
		}
		stats.CandidatesAfter = len(expandedIDs)

		if x.graph != nil {
			distances = computeDistances(x.graph, seeds, expandedIDs, cfg.ExpandDepth)
		}

		for _, id := range expandedIDs {
			n, ok := byID[id]
			if !ok {
				continue
			}
			if !strat.retainTests && looksLikeTest(n.FilePath) {
				continue
			}
			candidates = append(candidates, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scored := scoreCandidates(candidates, entities, vecScores, distances, cfg)

	budgetCfg := cfg
	budgetCfg.IncludeParent = cfg.IncludeParent && strat.retainParents

	var selected []ScoredNode
	err = x.store.View(func(txn *badger.Txn) error {
		parentOf := func(id model.NodeID) (*model.Node, bool) {
			edges, err := store.ScanEdgesToTarget(txn, id)
			if err != nil {
				return nil, false
			}
			for _, e := range edges {
				if e.Type != model.EdgeContains {
					continue
				}
				p, err := store.GetNode(txn, e.Source)
				if err == nil && p.Type == model.NodeClass {
					return p, true
				}
			}
			return nil, false
		}
		selected = fitToBudget(scored, budgetCfg, parentOf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	nodes := make([]*model.Node, len(selected))
	relevance := make(map[model.NodeID]float64, len(selected))
	for i, sn := range selected {
		nodes[i] = sn.Node
		relevance[sn.Node.ID] = sn.Score
	}

	text := renderMUText(nodes, cfg)

	// Report the heuristic cost fitToBudget actually bounded against
	// cfg.MaxTokens, not a fresh measurement of the rendered text — the
	// estimator and the budget check must speak the same number or the
	// token-budget invariant (spec.md §4.5 step 6) can't be guaranteed.
	actualTokens := 0
	for _, sn := range selected {
		actualTokens += sn.EstimatedTokens
	}

	if cfg.MaxTokens > 0 {
		stats.BudgetUtilization = float64(actualTokens) / float64(cfg.MaxTokens)
	}

	return &Result{
		MUText:          text,
		Nodes:           nodes,
		TokenCount:      actualTokens,
		RelevanceScores: relevance,
		Stats:           stats,
		Intent:          intent,
		IntentConf:      intentConf,
		Strategy:        string(intent),
	}, nil
}

func scoreCandidates(candidates []*model.Node, entities []ExtractedEntity, vecScores map[model.NodeID]float64, distances map[model.NodeID]int, cfg Config) []ScoredNode {
	var scored []ScoredNode
	for _, n := range candidates {
		entityScore := scoreEntityMatch(n.Name, n.QualifiedName, entities)
		vectorScore := vecScores[n.ID]
		d, reached := distances[n.ID]
		proximityScore := scoreProximity(d, reached)

		score := combinedScore(cfg, entityScore, vectorScore, proximityScore)
		if score < cfg.MinRelevance {
			continue
		}
		scored = append(scored, ScoredNode{
			Node:           n,
			Score:          score,
			EntityScore:    entityScore,
			VectorScore:    vectorScore,
			ProximityScore: proximityScore,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

func matchesEntityName(n *model.Node, e ExtractedEntity) bool {
	if n.Name == e.Name {
		return true
	}
	if strings.EqualFold(n.Name, e.Name) {
		return true
	}
	if n.QualifiedName != "" && strings.Contains(strings.ToLower(n.QualifiedName), strings.ToLower(e.Name)) {
		return true
	}
	return strings.Contains(strings.ToLower(n.Name), strings.ToLower(e.Name))
}

func looksLikeTest(filePath string) bool {
	lower := strings.ToLower(filePath)
	return strings.Contains(lower, "test") || strings.Contains(lower, "spec")
}

func sortNodeIDs(ids []model.NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
