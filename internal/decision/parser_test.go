package decision

import (
	"testing"

	"github.com/daydemir/agentcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStrictJSON(t *testing.T) {
	action, _, err := Extract(`{"type":"read_file","path":"main.go"}`)
	require.NoError(t, err)
	assert.Equal(t, types.ActionReadFile, action.Type)
	assert.Equal(t, "main.go", action.Path)
}

func TestExtractFencedJSON(t *testing.T) {
	content := "I'll look around.\n```json\n{\"type\":\"list_tree\",\"path\":\".\"}\n```\nDone."
	action, _, err := Extract(content)
	require.NoError(t, err)
	assert.Equal(t, types.ActionListTree, action.Type)
}

func TestExtractBraceSubstring(t *testing.T) {
	content := "Here is my plan: {\"type\":\"final\",\"summary\":\"done\"} -- end"
	action, _, err := Extract(content)
	require.NoError(t, err)
	assert.Equal(t, types.ActionFinal, action.Type)
}

func TestExtractRejectsUnknownType(t *testing.T) {
	_, _, err := Extract(`{"type":"delete_everything"}`)
	assert.Error(t, err)
}

func TestExtractValidatesRequiredFields(t *testing.T) {
	_, _, err := Extract(`{"type":"read_file"}`)
	assert.Error(t, err)

	_, _, err = Extract(`{"type":"run_command"}`)
	assert.Error(t, err)
}
