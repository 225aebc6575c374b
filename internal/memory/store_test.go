package memory

import (
	"testing"

	"github.com/daydemir/agentcore/internal/types"
	"github.com/stretchr/testify/require"
)

func TestAddThenRetrieveFindsEntry(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.Add(types.MemoryEntry{
		Type: types.MemoryFixPattern, Title: "nil pointer in handler",
		Content:         "always check request body before dereferencing",
		SuccessScore:    0.8,
		ConfidenceScore: 0.9,
	}))

	result, err := store.Retrieve(Query{Text: "nil pointer handler request body"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Entries)
	require.Equal(t, 1, result.Entries[0].UseCount)
}

func TestAddMergesOnDedupeKey(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	entry := types.MemoryEntry{Type: types.MemoryBugPattern, Title: "flaky test", Content: "v1", SuccessScore: 1.0, ConfidenceScore: 1.0}
	require.NoError(t, store.Add(entry))
	require.NoError(t, store.Add(types.MemoryEntry{Type: types.MemoryBugPattern, Title: "flaky test", Content: "v1", SuccessScore: 0.0, ConfidenceScore: 0.0}))

	f, err := store.Load()
	require.NoError(t, err)
	require.Len(t, f.Entries, 1)
	require.Equal(t, "v1", f.Entries[0].Content)
	require.InDelta(t, 0.65, f.Entries[0].SuccessScore, 0.01)
}

func TestRetrieveAppliesConfidenceFloor(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Add(types.MemoryEntry{
		Type: types.MemoryBugPattern, Title: "low confidence thing", Content: "low confidence thing",
		ConfidenceScore: 0.1,
	}))
	result, err := store.Retrieve(Query{Text: "low confidence thing"})
	require.NoError(t, err)
	require.Empty(t, result.Entries)
}

func TestRetrieveDetectsConflicts(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Add(types.MemoryEntry{
		Type: types.MemoryVerificationRule, Title: "lint command works", Content: "the lint command passes cleanly on this repo",
		ConfidenceScore: 0.9, SuccessScore: 0.9,
	}))
	require.NoError(t, store.Add(types.MemoryEntry{
		Type: types.MemoryVerificationRule, Title: "lint command does not work", Content: "the lint command never passes cleanly on this repo",
		ConfidenceScore: 0.9, SuccessScore: 0.9,
	}))
	result, err := store.Retrieve(Query{Text: "lint command passes cleanly repo", TopK: 8})
	require.NoError(t, err)
	require.NotEmpty(t, result.Conflicts)
}
