package types

import "fmt"

// Action is the tagged variant the Decision Parser extracts from model
// output.
//
// Only the fields relevant to Type are populated; the Tool Executor and
// Decision Parser validators are the single place that know which fields
// a given Type requires.
type Action struct {
	Type ActionType `json:"type"`

	// list_tree
	Path     string `json:"path,omitempty"`
	MaxDepth int    `json:"maxDepth,omitempty"`

	// search_files
	Pattern    string `json:"pattern,omitempty"`
	Glob       string `json:"glob,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`

	// read_file
	StartLine int `json:"startLine,omitempty"`
	EndLine   int `json:"endLine,omitempty"`

	// read_many_files
	Paths            []string `json:"paths,omitempty"`
	MaxLinesPerFile  int      `json:"maxLinesPerFile,omitempty"`

	// write_file / append_file
	Content string `json:"content,omitempty"`

	// run_command
	Command *Command `json:"command,omitempty"`

	// web_search
	Query string `json:"query,omitempty"`

	// final
	Summary       string   `json:"summary,omitempty"`
	Verification  []string `json:"verification,omitempty"`
	RemainingWork []string `json:"remainingWork,omitempty"`
}

// Signature returns a canonical string used by the repeated-action
// stagnation guard to detect the same action fired back to
// back.
func (a Action) Signature() string {
	switch a.Type {
	case ActionListTree:
		return fmt.Sprintf("list_tree:%s:%d", a.Path, a.MaxDepth)
	case ActionSearchFiles:
		return fmt.Sprintf("search_files:%s:%s:%d", a.Pattern, a.Glob, a.MaxResults)
	case ActionReadFile:
		return fmt.Sprintf("read_file:%s:%d:%d", a.Path, a.StartLine, a.EndLine)
	case ActionReadManyFiles:
		return fmt.Sprintf("read_many_files:%v:%d", a.Paths, a.MaxLinesPerFile)
	case ActionWriteFile:
		return fmt.Sprintf("write_file:%s:%d", a.Path, len(a.Content))
	case ActionAppendFile:
		return fmt.Sprintf("append_file:%s:%d", a.Path, len(a.Content))
	case ActionDeleteFile:
		return fmt.Sprintf("delete_file:%s", a.Path)
	case ActionRunCommand:
		if a.Command == nil {
			return "run_command:<nil>"
		}
		return fmt.Sprintf("run_command:%s", a.Command.String())
	case ActionWebSearch:
		return fmt.Sprintf("web_search:%s", a.Query)
	case ActionFinal:
		return fmt.Sprintf("final:%s", a.Summary)
	default:
		return "unknown:" + string(a.Type)
	}
}

// IsMutation reports whether executing this action would consume the
// fileWrites budget.
func (a Action) IsMutation() bool {
	switch a.Type {
	case ActionWriteFile, ActionAppendFile, ActionDeleteFile:
		return true
	default:
		return false
	}
}

// IsEvidenceProducing reports whether a successful execution of this action
// counts as "evidence" for the Memory Store's evidence gate.
func (a Action) IsEvidenceProducing() bool {
	switch a.Type {
	case ActionReadFile, ActionReadManyFiles, ActionSearchFiles, ActionRunCommand:
		return true
	default:
		return false
	}
}
