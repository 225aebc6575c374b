package checkpoint

import (
	"os"
	"testing"
	"time"

	"github.com/daydemir/agentcore/internal/types"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	cp := &types.Checkpoint{
		RunId:     "run-1",
		ResumeKey: ResumeKey(dir, "fix the bug"),
		Workspace: dir,
		Goal:      "fix the bug",
		Status:    types.StatusInProgress,
		StartedAt: time.Now(),
	}
	require.NoError(t, store.Save(cp))

	loaded, err := store.Load("run-1")
	require.NoError(t, err)
	require.Equal(t, cp.Goal, loaded.Goal)
	require.Equal(t, cp.ResumeKey, loaded.ResumeKey)

	_, err = os.Stat(store.runDir("run-1") + "/meta.json")
	require.NoError(t, err)
}

func TestFindResumableMatchesKeyAndFreshness(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	key := ResumeKey(dir, "fix the bug")

	fresh := &types.Checkpoint{RunId: "fresh", ResumeKey: key, Workspace: dir, Goal: "fix the bug", Status: types.StatusInProgress, UpdatedAt: time.Now()}
	require.NoError(t, store.Save(fresh))

	found, err := store.FindResumable(key, time.Now())
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "fresh", found.RunId)
}

func TestFindResumableRejectsStale(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	key := ResumeKey(dir, "fix the bug")

	staleTime := time.Now().Add(-10 * time.Minute)
	stale := &types.Checkpoint{RunId: "stale", ResumeKey: key, Workspace: dir, Goal: "fix the bug", Status: types.StatusInProgress}
	require.NoError(t, store.Save(stale))

	// Save() stamps UpdatedAt to now; rewrite checkpoint.json directly with
	// a stale timestamp to simulate an abandoned run without going through
	// Save (which would refresh it back to fresh).
	cp, err := store.Load("stale")
	require.NoError(t, err)
	cp.UpdatedAt = staleTime
	require.NoError(t, writeJSONAtomic(store.runDir("stale")+"/checkpoint.json", cp))
	meta, err := os.ReadFile(store.runDir("stale") + "/meta.json")
	require.NoError(t, err)
	_ = meta

	found, err := store.FindResumable(key, time.Now())
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestResumeKeyIsStableForSameInputs(t *testing.T) {
	require.Equal(t, ResumeKey("/ws", "do the thing"), ResumeKey("/ws", "  do the thing  "))
	require.NotEqual(t, ResumeKey("/ws", "a"), ResumeKey("/ws", "b"))
}
