package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daydemir/agentcore/internal/toolexec"
	"github.com/daydemir/agentcore/internal/types"
)

// ignoredDigestDirs mirrors toolexec's ignored tree segments so the digest
// scan doesn't walk into build output or dependency trees.
var ignoredDigestDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".tmp": true, "__pycache__": true,
}

// languageByExt is a coarse extension-to-language map used for the stack
// summary, a shallow heuristic rather than real static analysis.
var languageByExt = map[string]string{
	".go": "Go", ".ts": "TypeScript", ".tsx": "TypeScript", ".js": "JavaScript",
	".jsx": "JavaScript", ".py": "Python", ".rb": "Ruby", ".rs": "Rust",
	".java": "Java", ".kt": "Kotlin", ".cs": "C#", ".c": "C", ".cpp": "C++",
	".php": "PHP", ".swift": "Swift", ".scala": "Scala", ".ex": "Elixir",
}

type fileStat struct {
	rel  string
	size int64
}

type scanResult struct {
	filesByLang    map[string]int
	dirCounts      map[string]int
	largest        []fileStat
	todoCount      int
	testFiles      int
	totalFiles     int
	hasPackageJSON bool
	hasMakefile    bool
	hasGoMod       bool
}

func scanWorkspace(root string) scanResult {
	res := scanResult{filesByLang: map[string]int{}, dirCounts: map[string]int{}}
	filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		base := filepath.Base(rel)
		if info.IsDir() {
			if ignoredDigestDirs[base] {
				return filepath.SkipDir
			}
			return nil
		}
		dir := filepath.Dir(rel)
		res.dirCounts[dir]++
		res.totalFiles++

		switch base {
		case "package.json":
			res.hasPackageJSON = true
		case "Makefile":
			res.hasMakefile = true
		case "go.mod":
			res.hasGoMod = true
		}
		if strings.Contains(base, "_test.") || strings.Contains(base, ".test.") || strings.Contains(dir, "test") {
			res.testFiles++
		}

		ext := strings.ToLower(filepath.Ext(base))
		if lang, ok := languageByExt[ext]; ok {
			res.filesByLang[lang]++
		}
		res.largest = append(res.largest, fileStat{rel: rel, size: info.Size()})
		if ext == ".go" || ext == ".ts" || ext == ".js" || ext == ".py" || ext == ".rb" {
			if data, rerr := os.ReadFile(p); rerr == nil {
				res.todoCount += strings.Count(string(data), "TODO") + strings.Count(string(data), "FIXME")
			}
		}
		return nil
	})
	return res
}

// projectDigest renders the initial orientation text handed to the model:
// a shallow tree preview, language hints, detected build/test scripts, and
// test presence.
func projectDigest(ctx context.Context, exec *toolexec.Executor) string {
	tree := exec.Execute(ctx, types.Action{Type: types.ActionListTree, Path: ".", MaxDepth: 3})
	scan := scanWorkspace(exec.Workspace)

	var b strings.Builder
	b.WriteString("Workspace layout (depth 3):\n")
	b.WriteString(tree.Output)
	b.WriteString("\n\nLanguages detected: ")
	b.WriteString(languageSummary(scan.filesByLang))
	b.WriteString("\nBuild tooling: ")
	b.WriteString(buildToolingSummary(scan))
	if scan.testFiles > 0 {
		fmt.Fprintf(&b, "\nTests: %d test files detected.", scan.testFiles)
	} else {
		b.WriteString("\nTests: none detected.")
	}
	return b.String()
}

func languageSummary(byLang map[string]int) string {
	if len(byLang) == 0 {
		return "none recognized"
	}
	type pair struct {
		lang  string
		count int
	}
	var pairs []pair
	for l, c := range byLang {
		pairs = append(pairs, pair{l, c})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].count > pairs[j].count })
	var parts []string
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s (%d files)", p.lang, p.count))
	}
	return strings.Join(parts, ", ")
}

func buildToolingSummary(scan scanResult) string {
	var tools []string
	if scan.hasGoMod {
		tools = append(tools, "go.mod")
	}
	if scan.hasPackageJSON {
		tools = append(tools, "package.json")
	}
	if scan.hasMakefile {
		tools = append(tools, "Makefile")
	}
	if len(tools) == 0 {
		return "none detected"
	}
	return strings.Join(tools, ", ")
}

// deeperIntelligence summarizes stack composition, the busiest directories,
// the largest ("hotspot") files, a rough module-edge count, and risk
// signals. This stays a static heuristic scan, not real static analysis —
// deeper analysis belongs to an explore agent this core doesn't own.
func deeperIntelligence(exec *toolexec.Executor) string {
	scan := scanWorkspace(exec.Workspace)

	var b strings.Builder
	b.WriteString("Codebase intelligence:\n")
	fmt.Fprintf(&b, "- stack: %s\n", languageSummary(scan.filesByLang))
	fmt.Fprintf(&b, "- top directories by file count: %s\n", topDirs(scan.dirCounts, 5))
	fmt.Fprintf(&b, "- largest files (possible hotspots): %s\n", hotspots(scan.largest, 5))
	fmt.Fprintf(&b, "- module edges (approx. import/require touch points): %d files reference other modules\n", moduleEdgeEstimate(scan))
	var risks []string
	if scan.testFiles == 0 {
		risks = append(risks, "no test files found")
	}
	if scan.todoCount > 0 {
		risks = append(risks, fmt.Sprintf("%d TODO/FIXME markers", scan.todoCount))
	}
	if len(risks) == 0 {
		risks = append(risks, "none detected")
	}
	fmt.Fprintf(&b, "- risk signals: %s", strings.Join(risks, "; "))
	return b.String()
}

func topDirs(counts map[string]int, n int) string {
	type pair struct {
		dir   string
		count int
	}
	var pairs []pair
	for d, c := range counts {
		pairs = append(pairs, pair{d, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].dir < pairs[j].dir
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	var parts []string
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s (%d)", p.dir, p.count))
	}
	if len(parts) == 0 {
		return "n/a"
	}
	return strings.Join(parts, ", ")
}

func hotspots(files []fileStat, n int) string {
	sort.Slice(files, func(i, j int) bool { return files[i].size > files[j].size })
	if len(files) > n {
		files = files[:n]
	}
	var parts []string
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s (%dB)", f.rel, f.size))
	}
	if len(parts) == 0 {
		return "n/a"
	}
	return strings.Join(parts, ", ")
}

// moduleEdgeEstimate is a deliberately coarse proxy for cross-module
// coupling: count source files in directories with more than one file,
// which tend to be the ones importing siblings rather than standing alone.
func moduleEdgeEstimate(scan scanResult) int {
	count := 0
	for _, c := range scan.dirCounts {
		if c > 1 {
			count += c
		}
	}
	return count
}

// memoryGuidance summarizes retrieved memory entries and conflict
// diagnostics into a short block.
func memoryGuidance(result types.RetrievalResult) string {
	if len(result.Entries) == 0 {
		return "No relevant prior memory for this workspace."
	}
	out := "Relevant prior knowledge:\n"
	for _, e := range result.Entries {
		out += fmt.Sprintf("- [%s] %s: %s\n", e.Type, e.Title, types.TruncateTo(e.Content, 400))
	}
	if result.Guidance != "" {
		out += "\nNote: " + result.Guidance
	}
	return out
}
