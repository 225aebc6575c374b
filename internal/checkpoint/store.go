// Package checkpoint implements the Checkpoint Store:
// atomic persistence of in-flight run state under
// <workspace>/.tmp/agent-runs/<runId>/, and resume discovery by
// workspace+goal resumeKey.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daydemir/agentcore/internal/types"
)

// RunsDirName is the fixed location for run checkpoints under a workspace.
const RunsDirName = ".tmp/agent-runs"

// ResumeKey derives the stable key used to find a resumable checkpoint for
// a given workspace/goal pair: SHA-256(workspace + "\n" + trimmed
// goal)[:24].
func ResumeKey(workspace, goal string) string {
	sum := sha256.Sum256([]byte(workspace + "\n" + strings.TrimSpace(goal)))
	return hex.EncodeToString(sum[:])[:24]
}

// Store persists and loads Checkpoints for one workspace.
type Store struct {
	Workspace string
}

// NewStore builds a Store rooted at workspace.
func NewStore(workspace string) *Store {
	return &Store{Workspace: workspace}
}

func (s *Store) runDir(runId string) string {
	return filepath.Join(s.Workspace, RunsDirName, runId)
}

// Save atomically writes checkpoint.json and meta.json for a run,
// following the write-temp-file-then-rename idiom.
func (s *Store) Save(cp *types.Checkpoint) error {
	cp.UpdatedAt = time.Now()
	dir := s.runDir(cp.RunId)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
	}

	if err := writeJSONAtomic(filepath.Join(dir, "checkpoint.json"), cp); err != nil {
		return err
	}

	meta := types.CheckpointMeta{
		RunId: cp.RunId, ResumeKey: cp.ResumeKey, Workspace: cp.Workspace,
		Goal: cp.Goal, StartedAt: cp.StartedAt, UpdatedAt: cp.UpdatedAt,
		Status: cp.Status, ResumedFromRunId: cp.ResumedFromRunId,
		LastIteration: cp.LastIteration,
	}
	return writeJSONAtomic(filepath.Join(dir, "meta.json"), meta)
}

// AppendEvent appends one NDJSON line to the run's event log. Event log
// writes are append-only and not atomic-rename, since losing the last
// partial line on crash is acceptable for a display/audit stream.
func (s *Store) AppendEvent(runId string, event any) error {
	dir := s.runDir(runId)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.ndjson"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// Load reads a run's checkpoint.json.
func (s *Store) Load(runId string) (*types.Checkpoint, error) {
	path := filepath.Join(s.runDir(runId), "checkpoint.json")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	defer file.Close()

	var cp types.Checkpoint
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	return &cp, nil
}

// FindResumable scans every run directory for one whose resumeKey matches
// and whose checkpoint is still resumable (in_progress status, within the
// staleness window). Ties are broken by most recent UpdatedAt.
func (s *Store) FindResumable(key string, now time.Time) (*types.Checkpoint, error) {
	root := filepath.Join(s.Workspace, RunsDirName)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var best *types.Checkpoint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaPath := filepath.Join(root, entry.Name(), "meta.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta types.CheckpointMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if meta.ResumeKey != key {
			continue
		}
		cp, err := s.Load(meta.RunId)
		if err != nil {
			continue
		}
		if !cp.IsResumable(now) {
			continue
		}
		if best == nil || cp.UpdatedAt.After(best.UpdatedAt) {
			best = cp
		}
	}
	return best, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal %s: %w", path, err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("checkpoint: write temp %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("checkpoint: rename %s: %w", path, err)
	}
	return nil
}
