package temporal

import (
	"context"
	"sort"
	"time"

	"github.com/mu-kernel/mukernel/pkg/model"
)

// BlameEntry attributes the last change to one property of a node to the
// snapshot that introduced it.
type BlameEntry struct {
	CommitHash   string
	CommitAuthor string
	CommitDate   time.Time
}

// Blame returns, for each tracked property of nodeID, the most recent
// snapshot that changed it (spec.md §4.6's supplemented blame feature).
// The content hash is the only property-level signal the graph persists
// per history record, so the single "content" key is what is populated;
// a node added at its first snapshot gets that snapshot's commit there
// too.
func (s *Service) Blame(ctx context.Context, nodeID model.NodeID) (map[string]BlameEntry, error) {
	entries, err := s.History(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Snapshot.CreatedAt.Before(entries[j].Snapshot.CreatedAt)
	})

	out := make(map[string]BlameEntry)
	for _, e := range entries {
		if e.Record.ChangeType == model.ChangeAdded || e.Record.ChangeType == model.ChangeModified {
			out["content"] = BlameEntry{
				CommitHash:   e.Snapshot.Commit,
				CommitAuthor: e.Snapshot.Author,
				CommitDate:   e.Snapshot.CreatedAt,
			}
		}
	}
	return out, nil
}
