// Package memory implements the Memory Store: a per-
// workspace, evidence-backed long-term memory with merge/supersede
// semantics, conflict detection, and relevance-scored retrieval.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daydemir/agentcore/internal/types"
)

// FileName is the on-disk location of a workspace's memory store.
const FileName = ".tmp/agent-memory/memory-store.json"

// InvalidatedPenalty is the retrieval-score multiplier applied to an
// invalidated entry.
const InvalidatedPenalty = 0.18

// Store owns the on-disk memory file for one workspace.
type Store struct {
	Workspace string
}

// NewStore builds a Store rooted at workspace.
func NewStore(workspace string) *Store {
	return &Store{Workspace: workspace}
}

func (s *Store) path() string {
	return filepath.Join(s.Workspace, FileName)
}

// Load reads the memory file, returning an empty MemoryStoreFile if none
// exists yet.
func (s *Store) Load() (*types.MemoryStoreFile, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return &types.MemoryStoreFile{Version: 1}, nil
		}
		return nil, fmt.Errorf("memory: read: %w", err)
	}
	var f types.MemoryStoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("memory: decode: %w", err)
	}
	return &f, nil
}

// Save writes the memory file atomically (write-temp-rename, same idiom as
// the Checkpoint Store).
func (s *Store) Save(f *types.MemoryStoreFile) error {
	f.UpdatedAt = time.Now()
	path := s.path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("memory: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("memory: write temp: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("memory: rename: %w", err)
	}
	return nil
}

// dedupeKey builds the natural key used to detect a near-duplicate entry,
// hashing workspace + type + normalized title + content (same
// sha256/hex idiom as the Checkpoint Store's ResumeKey).
func dedupeKey(workspace string, t types.MemoryType, title, content string) string {
	sum := sha256.Sum256([]byte(workspace + "\n" + string(t) + "\n" +
		strings.ToLower(strings.TrimSpace(title)) + "\n" + content))
	return hex.EncodeToString(sum[:])[:24]
}

// Add merges entry into the store: an existing entry with the same
// dedupeKey is blended rather than duplicated.
// Blend weights are 0.65 existing / 0.35 incoming for successScore, and
// 0.60/0.40 for confidenceScore, matching a store that trusts accumulated
// history slightly more than a single new observation.
func (s *Store) Add(entry types.MemoryEntry) error {
	f, err := s.Load()
	if err != nil {
		return err
	}

	if entry.Workspace == "" {
		entry.Workspace = s.Workspace
	}
	entry.DedupeKey = dedupeKey(entry.Workspace, entry.Type, entry.Title, entry.Content)
	now := time.Now()

	if entry.Id == "" {
		entry.Id = uuid.NewString()
	}

	merged := false
	for i, existing := range f.Entries {
		if existing.DedupeKey != entry.DedupeKey {
			continue
		}
		m := existing
		m.Content = entry.Content
		m.SuccessScore = 0.65*existing.SuccessScore + 0.35*entry.SuccessScore
		m.ConfidenceScore = 0.60*existing.ConfidenceScore + 0.40*entry.ConfidenceScore
		m.Tags = unionCapped(existing.Tags, entry.Tags, 14)
		m.Evidence = mergeEvidence(existing.Evidence, entry.Evidence, 10)
		gainedEvidence := evidenceAddsNew(existing.Evidence, entry.Evidence)
		m.Supersedes = unionCapped(existing.Supersedes, entry.Supersedes, 16)
		m.ContradictedBy = unionCapped(existing.ContradictedBy, entry.ContradictedBy, 16)
		m.Pinned = existing.Pinned || entry.Pinned
		m.UpdatedAt = now
		if entry.LastValidatedAt != nil {
			m.LastValidatedAt = entry.LastValidatedAt
		} else if gainedEvidence {
			m.LastValidatedAt = &now
		}
		f.Entries[i] = m
		entry = m
		merged = true
		break
	}

	if !merged {
		entry.CreatedAt = now
		entry.UpdatedAt = now
		f.Entries = append(f.Entries, entry)
	}

	if len(entry.Supersedes) > 0 {
		supersedeSet := make(map[string]bool, len(entry.Supersedes))
		for _, id := range entry.Supersedes {
			supersedeSet[id] = true
		}
		for i := range f.Entries {
			if f.Entries[i].Id == entry.Id || !supersedeSet[f.Entries[i].Id] {
				continue
			}
			f.Entries[i].InvalidatedAt = &now
			f.Entries[i].ContradictedBy = unionCapped(f.Entries[i].ContradictedBy, []string{entry.Id}, 16)
		}
	}

	evictOldestNonPinned(f)
	return s.Save(f)
}

func evictOldestNonPinned(f *types.MemoryStoreFile) {
	if len(f.Entries) <= types.MaxMemoryEntries {
		return
	}
	sort.SliceStable(f.Entries, func(i, j int) bool {
		if f.Entries[i].Pinned != f.Entries[j].Pinned {
			return !f.Entries[i].Pinned // non-pinned sort first (eviction candidates)
		}
		return f.Entries[i].CreatedAt.Before(f.Entries[j].CreatedAt)
	})
	overflow := len(f.Entries) - types.MaxMemoryEntries
	if overflow > 0 {
		f.Entries = f.Entries[overflow:]
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func unionCapped(a, b []string, cap int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range append(append([]string{}, a...), b...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) >= cap {
			break
		}
	}
	return out
}

// evidenceKey hashes the fields that make two Evidence records the same
// observation, so a repeated run doesn't pad the list with duplicates.
func evidenceKey(e types.Evidence) string {
	sum := sha256.Sum256([]byte(e.Type + "\n" + e.Source + "\n" + e.Summary))
	return hex.EncodeToString(sum[:])
}

// evidenceAddsNew reports whether b contains any evidence not already
// present in a, by evidenceKey.
func evidenceAddsNew(a, b []types.Evidence) bool {
	seen := make(map[string]bool, len(a))
	for _, e := range a {
		seen[evidenceKey(e)] = true
	}
	for _, e := range b {
		if !seen[evidenceKey(e)] {
			return true
		}
	}
	return false
}

// mergeEvidence unions a and b, deduplicating by evidenceKey and keeping
// the most recent cap entries.
func mergeEvidence(a, b []types.Evidence, cap int) []types.Evidence {
	seen := make(map[string]bool)
	var out []types.Evidence
	for _, e := range append(append([]types.Evidence{}, a...), b...) {
		k := evidenceKey(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	if len(out) > cap {
		out = out[len(out)-cap:]
	}
	return out
}

// Invalidate marks entries as superseded, setting invalidatedAt and
// recording the superseding relation.
func (s *Store) Invalidate(oldId, newId string) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range f.Entries {
		if f.Entries[i].Id != oldId {
			continue
		}
		f.Entries[i].InvalidatedAt = &now
		f.Entries[i].ContradictedBy = unionCapped(f.Entries[i].ContradictedBy, []string{newId}, 16)
	}
	return s.Save(f)
}

// tokenize lowercases and splits on non-alphanumeric runs for the overlap
// and conflict heuristics.
func tokenize(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) >= 2 {
			set[w] = true
		}
	}
	return set
}

// overlapScore is the symmetric Jaccard-style ratio used to compare two
// entries against each other (conflict detection): shared tokens over the
// smaller of the two token sets.
func overlapScore(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	denom := len(a)
	if len(b) < denom {
		denom = len(b)
	}
	return float64(shared) / float64(denom)
}

// queryOverlapScore is the asymmetric ratio used by the retrieval formula:
// shared tokens over the query's own token count, so a short query against
// a long entry isn't penalized for the entry's extra vocabulary.
func queryOverlapScore(query, entry map[string]bool) float64 {
	if len(query) == 0 || len(entry) == 0 {
		return 0
	}
	shared := 0
	for w := range query {
		if entry[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}

// negationWords is the coarse polarity marker for conflict detection.
var negationWords = map[string]bool{
	"not": true, "never": true, "no": true, "don't": true, "doesn't": true,
	"avoid": true, "fails": true, "failed": true, "incorrect": true, "wrong": true,
}

func polarity(tokens map[string]bool) int {
	for w := range tokens {
		if negationWords[w] {
			return -1
		}
	}
	return 1
}

// related reports whether a and b are linked by a supersedes/contradictedBy
// relation, in which case they are a resolved disagreement, not a live
// conflict: entries linked this way never conflict.
func related(a, b types.MemoryEntry) bool {
	for _, id := range a.Supersedes {
		if id == b.Id {
			return true
		}
	}
	for _, id := range a.ContradictedBy {
		if id == b.Id {
			return true
		}
	}
	for _, id := range b.Supersedes {
		if id == a.Id {
			return true
		}
	}
	for _, id := range b.ContradictedBy {
		if id == a.Id {
			return true
		}
	}
	return false
}

// detectConflicts finds entry pairs with opposing polarity that share
// enough topic tokens to plausibly be about the same thing.
func detectConflicts(entries []types.MemoryEntry) []types.MemoryConflict {
	var conflicts []types.MemoryConflict
	for i := 0; i < len(entries); i++ {
		ti := tokenize(entries[i].Title + " " + entries[i].Content)
		pi := polarity(ti)
		for j := i + 1; j < len(entries); j++ {
			tj := tokenize(entries[j].Title + " " + entries[j].Content)
			pj := polarity(tj)
			if pi == pj {
				continue
			}
			if overlapScore(ti, tj) < 0.35 {
				continue
			}
			if related(entries[i], entries[j]) {
				continue
			}
			conflicts = append(conflicts, types.MemoryConflict{
				EntryA: entries[i].Id, EntryB: entries[j].Id,
				Reason: "opposing polarity over shared topic terms",
			})
		}
	}
	return conflicts
}

// Query parameterizes Retrieve.
type Query struct {
	Text     string
	MaxChars int
	TopK     int
}

// score implements the retrieval relevance formula:
//
//	score = (0.48*overlap + 0.10*recency + 0.14*successScore +
//	         0.20*confidence + 0.06*validationRecency + 0.02*pinned +
//	         0.02*usage) * (invalidated ? 0.18 : 1.0)
func score(e types.MemoryEntry, queryTokens map[string]bool, now time.Time) float64 {
	entryTokens := tokenize(e.Title + " " + e.Content)
	overlap := queryOverlapScore(queryTokens, entryTokens)

	recency := recencyScore(e.UpdatedAt, now)
	validationRecency := 0.0
	if e.LastValidatedAt != nil {
		validationRecency = recencyScore(*e.LastValidatedAt, now)
	}
	pinned := 0.0
	if e.Pinned {
		pinned = 1.0
	}
	usage := math.Min(1.0, float64(e.UseCount)/30.0)

	s := 0.48*overlap + 0.10*recency + 0.14*e.SuccessScore +
		0.20*e.ConfidenceScore + 0.06*validationRecency + 0.02*pinned + 0.02*usage

	if e.InvalidatedAt != nil {
		s *= InvalidatedPenalty
	}
	return s
}

// recencyScore decays linearly to 0 over 30 days.
func recencyScore(t time.Time, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	age := now.Sub(t).Hours() / 24
	if age >= 30 {
		return 0
	}
	if age < 0 {
		age = 0
	}
	return 1 - age/30
}

// Retrieve scores every entry against query (invalidated entries with
// InvalidatedPenalty applied), applies the
// per-type confidence floor (pinned entries exempt), selects the top-K
// within MaxChars, flags conflicts among the selected set, and records
// useCount/lastUsedAt side effects on the entries actually returned.
func (s *Store) Retrieve(q Query) (types.RetrievalResult, error) {
	f, err := s.Load()
	if err != nil {
		return types.RetrievalResult{}, err
	}

	now := time.Now()
	queryTokens := tokenize(q.Text)

	type scored struct {
		entry types.MemoryEntry
		score float64
	}
	var candidates []scored
	for _, e := range f.Entries {
		floor := types.MinConfidenceByType[e.Type]
		if !e.Pinned && e.ConfidenceScore < floor {
			continue
		}
		if !e.Pinned && hasTag(e.Tags, "dry_run") {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: score(e, queryTokens, now)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	topK := q.TopK
	if topK <= 0 {
		topK = 8
	}
	maxChars := q.MaxChars
	if maxChars <= 0 {
		maxChars = 4000
	}

	var selected []types.MemoryEntry
	used := 0
	for _, c := range candidates {
		if len(selected) >= topK {
			break
		}
		cost := len(c.entry.Content) + len(c.entry.Title)
		if used+cost > maxChars && len(selected) > 0 {
			continue
		}
		selected = append(selected, c.entry)
		used += cost
	}

	for i, e := range selected {
		for j := range f.Entries {
			if f.Entries[j].Id == e.Id {
				f.Entries[j].UseCount++
				f.Entries[j].LastUsedAt = &now
			}
		}
		selected[i].UseCount++
		selected[i].LastUsedAt = &now
	}
	if len(selected) > 0 {
		if err := s.Save(f); err != nil {
			return types.RetrievalResult{}, err
		}
	}

	conflicts := detectConflicts(selected)
	requiresVerification := len(conflicts) > 0
	var guidance string
	if requiresVerification {
		guidance = "Retrieved memory entries disagree with each other; verify before relying on either."
	}

	return types.RetrievalResult{
		Entries:                            selected,
		Conflicts:                          conflicts,
		RequiresVerificationBeforeMutation: requiresVerification,
		Guidance:                           guidance,
	}, nil
}

// SaveContinuation stores the single latest ContinuationPacket for a
// workspace and mirrors it as a MemoryContinuation entry.
func (s *Store) SaveContinuation(p types.ContinuationPacket) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	f.LatestContinuation = &p
	if err := s.Save(f); err != nil {
		return err
	}
	return s.Add(types.MemoryEntry{
		Type:            types.MemoryContinuation,
		Title:           "continuation: " + p.Goal,
		Content:         p.Summary,
		SuccessScore:    0.5,
		ConfidenceScore: types.MinConfidenceByType[types.MemoryContinuation],
	})
}

// Export returns the full store for backup/inspection, backing
// `agentcore memory export`.
func (s *Store) Export() (*types.MemoryStoreFile, error) {
	return s.Load()
}

// Import loads entries from f into the store. mode "replace" discards the
// existing store; mode "merge" runs every incoming entry through Add's
// dedupe/blend path.
func (s *Store) Import(f *types.MemoryStoreFile, mode string) error {
	if mode == "replace" {
		return s.Save(f)
	}
	for _, e := range f.Entries {
		if err := s.Add(e); err != nil {
			return err
		}
	}
	if f.LatestContinuation != nil {
		cur, err := s.Load()
		if err != nil {
			return err
		}
		cur.LatestContinuation = f.LatestContinuation
		return s.Save(cur)
	}
	return nil
}
