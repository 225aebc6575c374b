// Package rollback implements the Rollback Journal: a
// snapshot-once-per-path log of file state taken before every mutation,
// used to revert a run's changes in LIFO order on failure.
package rollback

import (
	"fmt"
	"os"

	"github.com/daydemir/agentcore/internal/types"
)

// Journal records one FileSnapshot per distinct path touched during a run.
// Snapshots are taken lazily, immediately before the first mutation of a
// given path, and never overwritten afterward.
type Journal struct {
	snapshots map[string]types.FileSnapshot
	order     []string
	dryRun    bool
}

// NewJournal constructs an empty Journal. In dry-run mode Snapshot and
// Revert are no-ops, since no mutation actually reaches disk.
func NewJournal(dryRun bool) *Journal {
	return &Journal{
		snapshots: make(map[string]types.FileSnapshot),
		dryRun:    dryRun,
	}
}

// Snapshot captures absPath's current content (or its absence) the first
// time it is mutated in this run. Subsequent calls for the same path are
// no-ops, preserving the pre-run state.
func (j *Journal) Snapshot(absPath, relPath string) error {
	if j.dryRun {
		return nil
	}
	if _, ok := j.snapshots[relPath]; ok {
		return nil
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			j.snapshots[relPath] = types.FileSnapshot{Path: relPath, Existed: false}
			j.order = append(j.order, relPath)
			return nil
		}
		return fmt.Errorf("snapshot %s: %w", relPath, err)
	}
	j.snapshots[relPath] = types.FileSnapshot{
		Path:            relPath,
		Existed:         true,
		PreviousContent: string(data),
	}
	j.order = append(j.order, relPath)
	return nil
}

// Snapshots returns the captured FileSnapshot map, keyed by workspace-
// relative path, for inclusion in a Checkpoint.
func (j *Journal) Snapshots() map[string]types.FileSnapshot {
	return j.snapshots
}

// Revert restores every snapshotted path to its pre-run state, most
// recently touched first, resolving relPath against root. It never
// returns early on an individual failure: every path is attempted, and
// all per-path errors are collected into the returned summary so the
// caller can report a partial rollback.
func (j *Journal) Revert(root string) []string {
	var summary []string
	for i := len(j.order) - 1; i >= 0; i-- {
		relPath := j.order[i]
		snap := j.snapshots[relPath]
		absPath := root + "/" + relPath
		if !snap.Existed {
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				summary = append(summary, fmt.Sprintf("%s: failed to remove: %v", relPath, err))
				continue
			}
			summary = append(summary, fmt.Sprintf("%s: removed (did not exist before run)", relPath))
			continue
		}
		if err := os.WriteFile(absPath, []byte(snap.PreviousContent), 0644); err != nil {
			summary = append(summary, fmt.Sprintf("%s: failed to restore: %v", relPath, err))
			continue
		}
		summary = append(summary, fmt.Sprintf("%s: restored", relPath))
	}
	return summary
}
