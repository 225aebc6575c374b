// Package decision implements the Decision Parser: it turns
// one model turn into a validated Action, retrying on transport failure or
// malformed output until a safe fallback takes over.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/daydemir/agentcore/internal/llm"
	"github.com/daydemir/agentcore/internal/types"
)

// MaxAttempts is the Decision Parser's retry ceiling across both transport
// failures and malformed-output corrections.
const MaxAttempts = 8

// FallbackAction is issued once MaxAttempts is exhausted without a valid
// decision.
var FallbackAction = types.Action{Type: types.ActionListTree, MaxDepth: 4}

// rawDecision is the three accepted top-level shapes, unified: either the
// action fields are inline, or nested under "action".
type rawDecision struct {
	Thinking string          `json:"thinking"`
	Type     string          `json:"type"`
	Action   json.RawMessage `json:"action"`

	Path     string   `json:"path"`
	MaxDepth int      `json:"maxDepth"`
	Pattern  string   `json:"pattern"`
	Glob     string   `json:"glob"`
	MaxResults int    `json:"maxResults"`
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Paths     []string `json:"paths"`
	MaxLinesPerFile int `json:"maxLinesPerFile"`
	Content   string   `json:"content"`
	Command   *types.Command `json:"command"`
	Query     string   `json:"query"`
	Summary   string   `json:"summary"`
	Verification []string `json:"verification"`
	RemainingWork []string `json:"remainingWork"`
}

// Parser owns one run's backend and assembles/validates decisions.
type Parser struct {
	Backend      llm.Backend
	DegradeIndex int
}

// Decide requests one decision from the backend, extracting and validating
// an Action. On malformed output it reissues the call with a correction
// message; on any transport error it waits with exponential backoff and
// retries, without telling retryable errors from fatal ones. Either kind of failure raises DegradeIndex by one and causes the
// next attempt's base messages to be rebuilt via assemble at the new,
// smaller context budget. DegradeIndex resets to 0 at the start of every
// Decide call. After MaxAttempts it returns FallbackAction rather than
// erroring the run.
func (p *Parser) Decide(ctx context.Context, assemble func(degradeIndex int) []types.Message, opts llm.ChatOptions) (types.Action, string, error) {
	p.DegradeIndex = 0
	var lastErr error
	var corrections []types.Message

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		history := append(assemble(p.DegradeIndex), corrections...)
		result, err := p.Backend.ChatComplete(ctx, history, opts)
		if err != nil {
			lastErr = err
			p.DegradeIndex++
			select {
			case <-ctx.Done():
				return FallbackAction, "", ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
			continue
		}

		action, thinking, perr := Extract(result.Content)
		if perr != nil {
			lastErr = perr
			p.DegradeIndex++
			corrections = append(corrections,
				types.Message{Role: "assistant", Content: result.Content},
				types.Message{
					Role:    "user",
					Content: fmt.Sprintf("Your previous response could not be parsed as a decision: %v. Reply with a single valid JSON object only.", perr),
				},
			)
			continue
		}
		return action, thinking, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("decision parser: exhausted %d attempts", MaxAttempts)
	}
	return FallbackAction, fmt.Sprintf("falling back to list_tree after %d failed decision attempts: %v", MaxAttempts, lastErr), nil
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	if d > 6500*time.Millisecond {
		d = 6500 * time.Millisecond
	}
	return d
}

// Extract parses model output using a fixed extraction order: strict
// JSON, then a fenced ```json block, then the substring between the first
// "{" and the last "}".
func Extract(content string) (types.Action, string, error) {
	candidates := []string{strings.TrimSpace(content)}
	if fenced := extractFencedJSON(content); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if sub := extractBraceSubstring(content); sub != "" {
		candidates = append(candidates, sub)
	}

	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var raw rawDecision
		if err := json.Unmarshal([]byte(c), &raw); err != nil {
			lastErr = err
			continue
		}
		action, err := normalize(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return action, raw.Thinking, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON object found in model output")
	}
	return types.Action{}, "", lastErr
}

func extractFencedJSON(s string) string {
	const open = "```json"
	i := strings.Index(s, open)
	if i < 0 {
		return ""
	}
	rest := s[i+len(open):]
	j := strings.Index(rest, "```")
	if j < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:j])
}

// normalizeActionType lowercases and converts spaces/hyphens to underscores.
func normalizeActionType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func extractBraceSubstring(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// normalize merges the three accepted shapes into an Action and validates
// the per-variant required fields.
func normalize(raw rawDecision) (types.Action, error) {
	typeStr := raw.Type
	if typeStr == "" && len(raw.Action) > 0 {
		// The "action" field may itself be a bare string (second accepted
		// shape: {thinking, action:"type-name"}) rather than an object.
		var bare string
		if err := json.Unmarshal(raw.Action, &bare); err == nil {
			raw.Type = bare
			raw.Action = nil
			return normalize(raw)
		}
		var nested rawDecision
		if err := json.Unmarshal(raw.Action, &nested); err == nil {
			nested.Thinking = raw.Thinking
			return normalize(nested)
		}
	}

	at := types.ActionType(normalizeActionType(typeStr))
	valid := false
	for _, t := range types.AllActionTypes() {
		if t == at {
			valid = true
			break
		}
	}
	if !valid {
		return types.Action{}, fmt.Errorf("unrecognized action type %q", typeStr)
	}

	a := types.Action{
		Type: at, Path: raw.Path, MaxDepth: raw.MaxDepth,
		Pattern: raw.Pattern, Glob: raw.Glob, MaxResults: raw.MaxResults,
		StartLine: raw.StartLine, EndLine: raw.EndLine,
		Paths: raw.Paths, MaxLinesPerFile: raw.MaxLinesPerFile,
		Content: raw.Content, Command: raw.Command, Query: raw.Query,
		Summary: raw.Summary, Verification: raw.Verification, RemainingWork: raw.RemainingWork,
	}

	switch at {
	case types.ActionListTree:
		if a.Path == "" {
			a.Path = "."
		}
	case types.ActionSearchFiles:
		if a.Pattern == "" && a.Glob == "" {
			return a, fmt.Errorf("search_files requires pattern or glob")
		}
	case types.ActionReadFile:
		if a.Path == "" {
			return a, fmt.Errorf("read_file requires path")
		}
	case types.ActionReadManyFiles:
		if len(a.Paths) == 0 {
			return a, fmt.Errorf("read_many_files requires paths")
		}
	case types.ActionWriteFile, types.ActionAppendFile:
		if a.Path == "" {
			return a, fmt.Errorf("%s requires path", at)
		}
	case types.ActionDeleteFile:
		if a.Path == "" {
			return a, fmt.Errorf("delete_file requires path")
		}
	case types.ActionRunCommand:
		if a.Command == nil || a.Command.Program == "" {
			return a, fmt.Errorf("run_command requires command.program")
		}
	case types.ActionWebSearch:
		if a.Query == "" {
			return a, fmt.Errorf("web_search requires query")
		}
	case types.ActionFinal:
		if a.Summary == "" {
			return a, fmt.Errorf("final requires summary")
		}
	}
	return a, nil
}
