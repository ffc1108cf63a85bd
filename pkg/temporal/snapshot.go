package temporal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/store"
)

// SnapshotOptions controls CreateSnapshot.
type SnapshotOptions struct {
	// Commit, Author, and Message describe the point being snapshotted.
	// If Commit is empty, it is resolved by running `git log` in RepoDir.
	Commit  string
	Author  string
	Message string
	RepoDir string

	// Force allows re-snapshotting a commit that already has one.
	Force bool
}

// CreateSnapshot records the current graph's node and edge content hashes
// against a commit (spec.md §4.6). Calling it a second time for the same
// commit without Force returns an error wrapping kernel.ErrAlreadyExists.
func (s *Service) CreateSnapshot(ctx context.Context, opts SnapshotOptions) (*model.Snapshot, error) {
	commit, author, message, when := opts.Commit, opts.Author, opts.Message, time.Time{}
	if commit == "" {
		info, err := resolveHEAD(ctx, opts.RepoDir)
		if err != nil {
			return nil, err
		}
		commit, when = info.Hash, info.When
		if author == "" {
			author = info.Author
		}
		if message == "" {
			message = info.Message
		}
	}
	if when.IsZero() {
		when = time.Now()
	}

	var result *model.Snapshot
	err := s.store.Update(func(txn *badger.Txn) error {
		if _, err := store.GetSnapshotByCommit(txn, commit); err == nil {
			if !opts.Force {
				return fmt.Errorf("snapshot for commit %s: %w", commit, kernel.ErrAlreadyExists)
			}
		} else if !errors.Is(err, kernel.ErrNotFound) {
			return err
		}

		parent, err := latestSnapshot(txn)
		if err != nil {
			return err
		}

		nodes, err := store.ScanAllNodes(txn)
		if err != nil {
			return err
		}
		edges, err := store.ScanAllEdges(txn)
		if err != nil {
			return err
		}

		var priorNodes map[model.NodeID]*model.NodeHistory
		if parent != nil {
			recs, err := store.ScanNodeHistoryForSnapshot(txn, parent.ID)
			if err != nil {
				return err
			}
			priorNodes = make(map[model.NodeID]*model.NodeHistory, len(recs))
			for _, r := range recs {
				if r.ChangeType != model.ChangeRemoved {
					priorNodes[r.NodeID] = r
				}
			}
		}

		snap := &model.Snapshot{
			ID:        uuid.NewString(),
			Commit:    commit,
			Author:    author,
			Message:   message,
			NodeCount: len(nodes),
			EdgeCount: len(edges),
			CreatedAt: when,
		}
		if parent != nil {
			snap.ParentID = parent.ID
		}

		for _, n := range nodes {
			prior, existed := priorNodes[n.ID]
			h := &model.NodeHistory{
				SnapshotID: snap.ID,
				NodeID:     n.ID,
				AfterHash:  n.ContentHash,
				RecordedAt: when,
			}
			switch {
			case !existed:
				h.ChangeType = model.ChangeAdded
				snap.NodesAdded++
			case prior.AfterHash != n.ContentHash:
				h.ChangeType = model.ChangeModified
				h.BeforeHash = prior.AfterHash
				snap.NodesModified++
			default:
				h.ChangeType = model.ChangeUnchanged
				h.BeforeHash = prior.AfterHash
			}
			if err := store.PutNodeHistory(txn, h); err != nil {
				return err
			}
		}

		current := make(map[model.NodeID]bool, len(nodes))
		for _, n := range nodes {
			current[n.ID] = true
		}
		for id := range priorNodes {
			if !current[id] {
				if err := store.PutNodeHistory(txn, &model.NodeHistory{
					SnapshotID: snap.ID,
					NodeID:     id,
					ChangeType: model.ChangeRemoved,
					BeforeHash: priorNodes[id].AfterHash,
					RecordedAt: when,
				}); err != nil {
					return err
				}
				snap.NodesRemoved++
			}
		}

		var priorEdges map[model.EdgeID]bool
		if parent != nil {
			recs, err := store.ScanEdgeHistoryForSnapshot(txn, parent.ID)
			if err != nil {
				return err
			}
			priorEdges = make(map[model.EdgeID]bool, len(recs))
			for _, r := range recs {
				if r.ChangeType != model.ChangeRemoved {
					priorEdges[r.EdgeID] = true
				}
			}
		}

		currentEdges := make(map[model.EdgeID]bool, len(edges))
		for _, e := range edges {
			currentEdges[e.ID] = true
			changeType := model.ChangeUnchanged
			if !priorEdges[e.ID] {
				changeType = model.ChangeAdded
			}
			if err := store.PutEdgeHistory(txn, &model.EdgeHistory{
				SnapshotID: snap.ID,
				EdgeID:     e.ID,
				Source:     e.Source,
				Target:     e.Target,
				Type:       e.Type,
				ChangeType: changeType,
				RecordedAt: when,
			}); err != nil {
				return err
			}
		}
		for id := range priorEdges {
			if !currentEdges[id] {
				if err := store.PutEdgeHistory(txn, &model.EdgeHistory{
					SnapshotID: snap.ID,
					EdgeID:     id,
					ChangeType: model.ChangeRemoved,
					RecordedAt: when,
				}); err != nil {
					return err
				}
			}
		}

		if err := store.PutSnapshot(txn, snap); err != nil {
			return err
		}
		result = snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// latestSnapshot returns the most recently created snapshot, or nil if
// none exists yet.
func latestSnapshot(txn *badger.Txn) (*model.Snapshot, error) {
	all, err := store.ScanSnapshots(txn)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all[len(all)-1], nil
}
