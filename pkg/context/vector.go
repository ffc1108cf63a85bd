package context

import (
	"sort"

	"github.com/mu-kernel/mukernel/pkg/math/vector"
	"github.com/mu-kernel/mukernel/pkg/model"
)

// Embedder turns a question into the same embedding space the stored
// node vectors live in. Implementations wrap pkg/embedding's Provider;
// it is declared here, not imported from pkg/embedding, so this package
// never depends on a concrete provider or its HTTP/caching machinery.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// vectorScores computes cosine similarity between the question embedding
// and each cached node embedding's chosen column (spec.md §4.5 step 3b),
// returning the (at most limit) most similar matches as a map from node
// id to similarity.
// A nil embedder or an empty embeddings table degrades to no matches,
// never an error — the extractor still has entity/graph signal to work
// with.
func vectorScores(embedder Embedder, question string, embeddings []*model.Embedding, col model.EmbeddingColumn, limit int) map[model.NodeID]float64 {
	if embedder == nil || len(embeddings) == 0 {
		return nil
	}
	qvec, err := embedder.Embed(question)
	if err != nil || len(qvec) == 0 {
		return nil
	}

	type scored struct {
		id    model.NodeID
		score float64
	}
	var all []scored
	for _, e := range embeddings {
		v := e.Vector(col)
		if v == nil {
			continue
		}
		sim := vector.CosineSimilarity(qvec, v)
		if sim <= 0 {
			continue
		}
		all = append(all, scored{id: e.NodeID, score: sim})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make(map[model.NodeID]float64, len(all))
	for _, s := range all {
		out[s.id] = s.score
	}
	return out
}
