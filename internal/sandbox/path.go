// Package sandbox validates paths to keep every tool action inside the
// workspace, and whitelists commands to keep run_command from reaching
// anything beyond a fixed set of build/dev tools.
package sandbox

import (
	"fmt"
	"path"
	"strings"
)

// MaxPathLength is the rejection threshold for an overlong path.
const MaxPathLength = 260

// PolicyViolation is the non-retryable tool error surfaced to the model
// whenever a path or command is rejected.
type PolicyViolation struct {
	Reason string
}

func (e *PolicyViolation) Error() string { return e.Reason }

func violation(format string, a ...interface{}) *PolicyViolation {
	return &PolicyViolation{Reason: fmt.Sprintf(format, a...)}
}

// deniedSegments may never appear as a full path segment.
var deniedSegments = map[string]bool{
	"..":       true,
	".git":     true,
	".ssh":     true,
	".aws":     true,
	".gnupg":   true,
}

// deniedGlobs are fixed patterns matched against the full relative path.
var deniedGlobs = []string{
	".git/*", ".git/**",
	".ssh/*", ".ssh/**",
	".env", ".env.*", "*.env",
	"*.pem", "*.key",
	"id_rsa", "id_rsa.*", "id_ed25519", "id_ed25519.*",
	"secrets/*", "secrets/**",
	".tmp/approved-workspaces.json",
	".tmp/agent-runs/*", ".tmp/agent-runs/**",
	".tmp/agent-memory/*", ".tmp/agent-memory/**",
}

// ValidatePath normalizes and validates a workspace-relative (or absolute,
// which is first converted) path. It returns the normalized, forward-slash,
// leading-slash-stripped relative path on success.
func ValidatePath(workspace, input string) (string, error) {
	rel := toWorkspaceRelative(workspace, input)
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimLeft(rel, "/")

	if rel == "" {
		return "", violation("path is empty")
	}
	if len(rel) > MaxPathLength {
		return "", violation("path exceeds %d characters", MaxPathLength)
	}
	for _, r := range rel {
		if r < 0x20 {
			return "", violation("path contains a control character")
		}
	}

	segments := strings.Split(rel, "/")
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if deniedSegments[seg] {
			return "", violation("denied unsafe path segment %q", seg)
		}
		if strings.HasPrefix(seg, ".") && seg != ".github" && seg != "." {
			return "", violation("denied dotfile/dotdir segment %q", seg)
		}
	}

	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", violation("path escapes workspace")
	}

	base := path.Base(cleaned)
	for _, glob := range deniedGlobs {
		if ok, _ := path.Match(glob, cleaned); ok {
			return "", violation("path matches protected pattern %q", glob)
		}
		// A slash-free glob (e.g. "*.pem") is also matched against the
		// path's last segment, not just the full path.
		if !strings.Contains(glob, "/") {
			if ok, _ := path.Match(glob, base); ok {
				return "", violation("path matches protected pattern %q", glob)
			}
		}
		if strings.HasSuffix(glob, "/**") {
			prefix := strings.TrimSuffix(glob, "/**")
			if cleaned == prefix || strings.HasPrefix(cleaned, prefix+"/") {
				return "", violation("path matches protected pattern %q", glob)
			}
		}
	}

	return cleaned, nil
}

// toWorkspaceRelative converts an absolute path rooted at workspace into a
// relative path; any other input (already relative) passes through.
func toWorkspaceRelative(workspace, input string) string {
	input = strings.ReplaceAll(input, "\\", "/")
	workspace = strings.ReplaceAll(workspace, "\\", "/")
	if workspace != "" && strings.HasPrefix(input, workspace) {
		rest := strings.TrimPrefix(input, workspace)
		return strings.TrimPrefix(rest, "/")
	}
	if strings.HasPrefix(input, "/") {
		return strings.TrimPrefix(input, "/")
	}
	return input
}
