package ctxwindow

import (
	"strings"
	"testing"

	"github.com/daydemir/agentcore/internal/types"
)

func TestBudgetForDegradeIndexDescends(t *testing.T) {
	if BudgetForDegradeIndex(0) != 52000 {
		t.Fatalf("got %d", BudgetForDegradeIndex(0))
	}
	if BudgetForDegradeIndex(3) != 16000 {
		t.Fatalf("got %d", BudgetForDegradeIndex(3))
	}
	if BudgetForDegradeIndex(99) != 16000 {
		t.Fatalf("expected clamp, got %d", BudgetForDegradeIndex(99))
	}
}

func TestCompactionRewritesHistory(t *testing.T) {
	m := NewManager(types.Message{Role: "system", Content: "sys"}, types.Message{Role: "user", Content: "init"})
	for i := 0; i < 200; i++ {
		m.Append(types.Message{Role: "assistant", Content: "step"})
	}
	if !m.NeedsCompaction() {
		t.Fatal("expected compaction to be needed")
	}
	m.Compact("ran 200 steps", 50)
	if len(m.History) != 2+1+CompactionTailSize {
		t.Fatalf("unexpected history length %d", len(m.History))
	}
	if m.Compaction.DroppedMessages == 0 {
		t.Fatal("expected dropped message count to be recorded")
	}
}

func TestAssembleIncludesIterationPromptLast(t *testing.T) {
	m := NewManager(types.Message{Role: "system", Content: "sys"}, types.Message{Role: "user", Content: "init"})
	out := m.Assemble(AssembleOptions{IterationPrompt: "what next", DegradeIndex: 0})
	last := out[len(out)-1]
	if !strings.Contains(last.Content, "what next") {
		t.Fatalf("expected iteration prompt last, got %+v", last)
	}
}
