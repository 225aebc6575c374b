// Package toolexec implements the Tool Executor: it turns a
// validated Action into filesystem or subprocess activity confined to the
// sandbox package's path and command policy, and returns a truncated
// {ok, summary, output} result for every call.
package toolexec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/daydemir/agentcore/internal/rollback"
	"github.com/daydemir/agentcore/internal/sandbox"
	"github.com/daydemir/agentcore/internal/types"
)

// binaryExtensions are rejected by read_file/read_many_files.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".exe": true,
	".so": true, ".dylib": true, ".dll": true, ".bin": true, ".woff": true,
	".woff2": true, ".ttf": true, ".class": true, ".jar": true,
}

// ignoredTreeSegments are skipped when rendering list_tree.
var ignoredTreeSegments = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".tmp": true, "__pycache__": true,
}

const (
	maxReadFileBytes = 350 * 1024
	maxTreeDepthCap  = 8
	minTreeDepth     = 1
	defaultTreeDepth = 4
	maxSearchResultsCap = 250
	minSearchResults    = 1
	maxReadManyFiles    = 12
	maxLinesPerFileCap  = 800
	minLinesPerFile     = 20
	defaultLinesPerFile = 200
)

// Budget tracks the run's remaining mutation/command allowance. Once
// exhausted, the next matching action returns ok=false with "budget
// exceeded" rather than aborting the run.
type Budget struct {
	MaxFileWrites  int
	MaxCommandRuns int
	FileWrites     int
	CommandRuns    int
}

func (b *Budget) fileWritesExceeded() bool  { return b.FileWrites >= b.MaxFileWrites }
func (b *Budget) commandRunsExceeded() bool { return b.CommandRuns >= b.MaxCommandRuns }

// Result is the {ok, summary, output} shape returned for every action.
type Result struct {
	Ok      bool
	Summary string
	Output  string
}

// Executor applies Actions against one workspace under sandbox policy,
// tracking mutation/command budgets and feeding the Rollback Journal.
type Executor struct {
	Workspace string
	DryRun    bool
	Budget    *Budget
	Journal   *rollback.Journal
	NodeEnv   string

	journalEntries []types.ChangeJournalEntry
	changedFiles   map[string]bool
	commandsRun    []types.Command
}

// NewExecutor builds an Executor for one run.
func NewExecutor(workspace string, dryRun bool, budget *Budget, journal *rollback.Journal) *Executor {
	return &Executor{
		Workspace:    workspace,
		DryRun:       dryRun,
		Budget:       budget,
		Journal:      journal,
		NodeEnv:      "production",
		changedFiles: make(map[string]bool),
	}
}

// ChangeJournal returns the accumulated append-only mutation log.
func (e *Executor) ChangeJournal() []types.ChangeJournalEntry { return e.journalEntries }

// CommandsRun returns every command that actually reached exec.Command,
// in execution order.
func (e *Executor) CommandsRun() []types.Command { return e.commandsRun }

// ChangedFiles returns the distinct workspace-relative paths mutated so far.
func (e *Executor) ChangedFiles() []string {
	out := make([]string, 0, len(e.changedFiles))
	for p := range e.changedFiles {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Execute dispatches a by Type. The final action is never executed here;
// callers branch to the engine's finalize path before reaching Execute.
func (e *Executor) Execute(ctx context.Context, a types.Action) Result {
	switch a.Type {
	case types.ActionListTree:
		return e.listTree(a)
	case types.ActionSearchFiles:
		return e.searchFiles(a)
	case types.ActionReadFile:
		return e.readFile(a)
	case types.ActionReadManyFiles:
		return e.readManyFiles(a)
	case types.ActionWriteFile:
		return e.writeFile(a, false)
	case types.ActionAppendFile:
		return e.writeFile(a, true)
	case types.ActionDeleteFile:
		return e.deleteFile(a)
	case types.ActionRunCommand:
		return e.runCommand(ctx, a)
	case types.ActionWebSearch:
		return e.webSearch(a)
	default:
		return Result{Ok: false, Summary: fmt.Sprintf("unsupported action type %q", a.Type)}
	}
}

func (e *Executor) abs(rel string) string {
	return filepath.Join(e.Workspace, filepath.FromSlash(rel))
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Executor) listTree(a types.Action) Result {
	rel, err := sandbox.ValidatePath(e.Workspace, firstNonEmpty(a.Path, "."))
	if err != nil {
		return Result{Ok: false, Summary: err.Error()}
	}
	depth := clampInt(a.MaxDepth, minTreeDepth, maxTreeDepthCap, defaultTreeDepth)
	root := e.abs(rel)
	var b strings.Builder
	count := 0
	var walk func(dir string, prefix string, level int)
	walk = func(dir string, prefix string, level int) {
		if level > depth {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, entry := range entries {
			if ignoredTreeSegments[entry.Name()] {
				continue
			}
			count++
			name := entry.Name()
			if entry.IsDir() {
				name += "/"
			}
			b.WriteString(prefix + name + "\n")
			if entry.IsDir() {
				walk(filepath.Join(dir, entry.Name()), prefix+"  ", level+1)
			}
		}
	}
	walk(root, "", 1)
	out := types.Truncate(b.String())
	return Result{Ok: true, Summary: fmt.Sprintf("listed %d entries under %s (depth %d)", count, rel, depth), Output: out}
}

func (e *Executor) searchFiles(a types.Action) Result {
	if a.Pattern == "" && a.Glob == "" {
		return Result{Ok: false, Summary: "search_files requires pattern or glob"}
	}
	root := e.Workspace
	maxResults := clampInt(a.MaxResults, minSearchResults, maxSearchResultsCap, 50)
	var matches []string
	filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || len(matches) >= maxResults {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, seg := range strings.Split(rel, "/") {
			if ignoredTreeSegments[seg] {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		if a.Glob != "" {
			if ok, _ := filepath.Match(a.Glob, filepath.Base(rel)); !ok {
				return nil
			}
		}
		if a.Pattern != "" {
			data, rerr := os.ReadFile(p)
			if rerr != nil || !bytes.Contains(data, []byte(a.Pattern)) {
				return nil
			}
		}
		matches = append(matches, rel)
		return nil
	})
	out := types.Truncate(strings.Join(matches, "\n"))
	return Result{Ok: true, Summary: fmt.Sprintf("found %d matching files", len(matches)), Output: out}
}

func (e *Executor) readFile(a types.Action) Result {
	rel, err := sandbox.ValidatePath(e.Workspace, a.Path)
	if err != nil {
		return Result{Ok: false, Summary: err.Error()}
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(rel))] {
		return Result{Ok: false, Summary: fmt.Sprintf("%s: refusing to read binary file type", rel)}
	}
	data, err := os.ReadFile(e.abs(rel))
	if err != nil {
		return Result{Ok: false, Summary: fmt.Sprintf("%s: %v", rel, err)}
	}
	if len(data) > maxReadFileBytes {
		data = data[:maxReadFileBytes]
	}
	lines := strings.Split(string(data), "\n")
	start, end := 1, len(lines)
	if a.StartLine > 0 {
		start = a.StartLine
	}
	if a.EndLine > 0 {
		end = a.EndLine
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	var b strings.Builder
	for i := start; i <= end && i <= len(lines); i++ {
		fmt.Fprintf(&b, "%d| %s\n", i, lines[i-1])
	}
	return Result{Ok: true, Summary: fmt.Sprintf("read %s lines %d-%d", rel, start, end), Output: types.Truncate(b.String())}
}

func (e *Executor) readManyFiles(a types.Action) Result {
	if len(a.Paths) == 0 {
		return Result{Ok: false, Summary: "read_many_files: no paths given"}
	}
	if len(a.Paths) > maxReadManyFiles {
		return Result{Ok: false, Summary: fmt.Sprintf("read_many_files: at most %d paths, got %d", maxReadManyFiles, len(a.Paths))}
	}
	limit := clampInt(a.MaxLinesPerFile, minLinesPerFile, maxLinesPerFileCap, defaultLinesPerFile)
	var b strings.Builder
	okCount := 0
	for _, p := range a.Paths {
		rel, err := sandbox.ValidatePath(e.Workspace, p)
		if err != nil {
			fmt.Fprintf(&b, "=== %s ===\nerror: %v\n\n", p, err)
			continue
		}
		if binaryExtensions[strings.ToLower(filepath.Ext(rel))] {
			fmt.Fprintf(&b, "=== %s ===\nerror: binary file type\n\n", rel)
			continue
		}
		data, err := os.ReadFile(e.abs(rel))
		if err != nil {
			fmt.Fprintf(&b, "=== %s ===\nerror: %v\n\n", rel, err)
			continue
		}
		lines := strings.Split(string(data), "\n")
		if len(lines) > limit {
			lines = lines[:limit]
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", rel, strings.Join(lines, "\n"))
		okCount++
	}
	return Result{Ok: okCount > 0, Summary: fmt.Sprintf("read %d/%d files", okCount, len(a.Paths)), Output: types.Truncate(b.String())}
}

func (e *Executor) writeFile(a types.Action, append bool) Result {
	rel, err := sandbox.ValidatePath(e.Workspace, a.Path)
	if err != nil {
		return Result{Ok: false, Summary: err.Error()}
	}
	if e.Budget.fileWritesExceeded() {
		return Result{Ok: false, Summary: "file write budget exceeded"}
	}
	abs := e.abs(rel)
	if e.Journal != nil {
		if err := e.Journal.Snapshot(abs, rel); err != nil {
			return Result{Ok: false, Summary: err.Error()}
		}
	}
	op := types.JournalWrite
	if append {
		op = types.JournalAppend
	}
	if e.DryRun {
		e.recordMutation(op, rel, "dry-run: no write performed")
		e.Budget.FileWrites++
		return Result{Ok: true, Summary: fmt.Sprintf("[dry-run] would %s %s (%d bytes)", op, rel, len(a.Content))}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return Result{Ok: false, Summary: err.Error()}
	}
	var writeErr error
	if append {
		f, ferr := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if ferr != nil {
			return Result{Ok: false, Summary: ferr.Error()}
		}
		defer f.Close()
		_, writeErr = f.WriteString(a.Content)
	} else {
		writeErr = os.WriteFile(abs, []byte(a.Content), 0644)
	}
	if writeErr != nil {
		return Result{Ok: false, Summary: writeErr.Error()}
	}
	e.Budget.FileWrites++
	e.recordMutation(op, rel, fmt.Sprintf("%d bytes", len(a.Content)))
	return Result{Ok: true, Summary: fmt.Sprintf("%s %s (%d bytes)", op, rel, len(a.Content))}
}

func (e *Executor) deleteFile(a types.Action) Result {
	rel, err := sandbox.ValidatePath(e.Workspace, a.Path)
	if err != nil {
		return Result{Ok: false, Summary: err.Error()}
	}
	if e.Budget.fileWritesExceeded() {
		return Result{Ok: false, Summary: "file write budget exceeded"}
	}
	abs := e.abs(rel)
	if e.Journal != nil {
		if err := e.Journal.Snapshot(abs, rel); err != nil {
			return Result{Ok: false, Summary: err.Error()}
		}
	}
	if e.DryRun {
		e.recordMutation(types.JournalDelete, rel, "dry-run: no delete performed")
		e.Budget.FileWrites++
		return Result{Ok: true, Summary: fmt.Sprintf("[dry-run] would delete %s", rel)}
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return Result{Ok: false, Summary: err.Error()}
	}
	e.Budget.FileWrites++
	e.recordMutation(types.JournalDelete, rel, "removed")
	return Result{Ok: true, Summary: fmt.Sprintf("deleted %s", rel)}
}

func (e *Executor) recordMutation(op types.JournalOp, rel, details string) {
	e.journalEntries = append(e.journalEntries, types.ChangeJournalEntry{
		Op: op, Path: rel, Timestamp: time.Now(), Details: details,
	})
	e.changedFiles[rel] = true
}

func (e *Executor) runCommand(ctx context.Context, a types.Action) Result {
	if a.Command == nil {
		return Result{Ok: false, Summary: "run_command: missing command"}
	}
	if e.Budget.commandRunsExceeded() {
		return Result{Ok: false, Summary: "command run budget exceeded"}
	}
	if err := sandbox.ValidateCommand(a.Command.Program, a.Command.Args); err != nil {
		return Result{Ok: false, Summary: err.Error()}
	}
	cwd := e.Workspace
	if a.Command.Cwd != "" {
		rel, err := sandbox.ValidatePath(e.Workspace, a.Command.Cwd)
		if err != nil {
			return Result{Ok: false, Summary: err.Error()}
		}
		cwd = e.abs(rel)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, sandbox.CommandTimeoutSeconds*time.Second)
	defer cancel()

	e.commandsRun = append(e.commandsRun, *a.Command)

	cmd := exec.CommandContext(timeoutCtx, a.Command.Program, a.Command.Args...)
	cmd.Dir = cwd
	cmd.Env = sandbox.BuildEnv(e.NodeEnv)

	var buf bytes.Buffer
	limited := &limitWriter{w: bufio.NewWriter(&buf), limit: sandbox.OutputBufferLimit}
	cmd.Stdout = limited
	cmd.Stderr = limited

	start := time.Now()
	runErr := cmd.Run()
	limited.w.Flush()
	duration := time.Since(start)

	e.Budget.CommandRuns++

	output := types.Truncate(buf.String())
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return Result{Ok: false, Summary: fmt.Sprintf("%s: timed out after %ds", a.Command.String(), sandbox.CommandTimeoutSeconds), Output: output}
	}
	if runErr != nil {
		return Result{Ok: false, Summary: fmt.Sprintf("%s: %v (%dms)", a.Command.String(), runErr, duration.Milliseconds()), Output: output}
	}
	return Result{Ok: true, Summary: fmt.Sprintf("%s (%dms)", a.Command.String(), duration.Milliseconds()), Output: output}
}

// webSearch has no search provider wired in: every call with a query
// returns ok=false ("no search provider configured"), and no search is
// performed. A failure never aborts the run.
func (e *Executor) webSearch(a types.Action) Result {
	if a.Query == "" {
		return Result{Ok: false, Summary: "web_search: empty query"}
	}
	return Result{Ok: false, Summary: "web_search: no search provider configured", Output: ""}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// limitWriter caps total bytes written, silently dropping the rest once the
// limit is hit.
type limitWriter struct {
	w       *bufio.Writer
	limit   int
	written int
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if l.written >= l.limit {
		return len(p), nil
	}
	remaining := l.limit - l.written
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err := l.w.Write(p)
	l.written += n
	return len(p), err
}
