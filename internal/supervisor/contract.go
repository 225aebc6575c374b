package supervisor

import (
	"strings"
	"unicode"

	"github.com/daydemir/agentcore/internal/types"
)

// maxContractCriteria, minCriterionLineChars and minCriterionTokenChars
// bound the completion contract's criteria extraction: up to 6 criteria,
// filtering to ≥12-char lines and ≥4-char tokens.
const (
	maxContractCriteria     = 6
	minCriterionLineChars   = 12
	minCriterionTokenChars  = 4
)

// stopWords are dropped from a criterion before token-matching it against
// the result's evidence text.
var stopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "have": true,
	"will": true, "should": true, "could": true, "would": true, "there": true,
	"their": true, "which": true, "about": true, "into": true,
	"also": true, "make": true, "sure": true, "when": true, "then": true,
	"than": true, "only": true, "some": true, "need": true, "needs": true,
	"goal": true, "must": true, "your": true, "what": true, "they": true,
	"them": true, "these": true, "those": true, "here": true, "were": true,
}

// completionContract is the set of concrete claims a goal implies must be
// true before a run can be considered done, extracted so the Supervisor
// can check a RunResult against the goal itself rather than trusting the
// model's own "final" declaration.
type completionContract struct {
	criteria [][]string
}

// extractCompletionContract splits the goal into sentence-like criteria,
// filters and dedups them, and tokenizes each into the significant words
// it will look for as evidence.
func extractCompletionContract(goal string) completionContract {
	lines := splitCriteriaLines(goal)

	seen := map[string]bool{}
	var criteria [][]string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < minCriterionLineChars {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true

		tokens := tokenizeCriterion(trimmed)
		if len(tokens) > 0 {
			criteria = append(criteria, tokens)
		}
		if len(criteria) >= maxContractCriteria {
			break
		}
	}
	return completionContract{criteria: criteria}
}

// splitCriteriaLines splits on newlines and sentence terminators.
func splitCriteriaLines(goal string) []string {
	return strings.FieldsFunc(goal, func(r rune) bool {
		return r == '\n' || r == '.' || r == '!' || r == '?'
	})
}

func tokenizeCriterion(s string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	}) {
		if len(w) >= minCriterionTokenChars && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// isSatisfied checks a RunResult's evidence (summary, verification,
// filesChanged, commandsRun) against the contract's criteria and the
// remaining completion-contract clauses: it fails if remainingWork is
// non-empty, if the goal looks mutation-like and no file was written, or
// if strictVerification was requested and verification didn't pass. It
// returns the criterion tokens it found no evidence for, flattened, which
// become the "gap list" fed into the next cycle's goal.
func (c completionContract) isSatisfied(req types.RunRequest, result *types.RunResult) (bool, []string) {
	allTokens := c.flatten()
	if result.Status != types.StatusCompleted {
		return false, allTokens
	}
	if len(result.RemainingWork) > 0 {
		return false, allTokens
	}
	if types.GoalLooksMutationLike(req.Goal) && result.FileWriteCount == 0 {
		return false, allTokens
	}
	if req.StrictVerification && !result.VerificationPassed {
		return false, allTokens
	}

	haystack := strings.ToLower(result.Summary + " " + strings.Join(result.Verification, " ") + " " + strings.Join(result.FilesChanged, " "))
	for _, cmd := range lastN(result.CommandsRun, 30) {
		haystack += " " + strings.ToLower(cmd.String())
	}

	var gaps []string
	allMet := true
	for _, tokens := range c.criteria {
		need := len(tokens) / 2
		if need*2 < len(tokens) {
			need++
		}
		if need > 3 {
			need = 3
		}
		hits := 0
		var missing []string
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				hits++
			} else {
				missing = append(missing, tok)
			}
		}
		if hits < need {
			allMet = false
			gaps = append(gaps, missing...)
		}
	}
	return allMet, gaps
}

func (c completionContract) flatten() []string {
	var out []string
	for _, tokens := range c.criteria {
		out = append(out, tokens...)
	}
	return out
}

func lastN(cmds []types.Command, n int) []types.Command {
	if len(cmds) <= n {
		return cmds
	}
	return cmds[len(cmds)-n:]
}
