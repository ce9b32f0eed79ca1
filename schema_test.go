package clara

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptSchema(t *testing.T) {
	data, err := ScriptSchemaJSON()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "Clara dialogue script", schema["title"])
	assert.ElementsMatch(t, []any{"start", "nodes"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	nodes, ok := props["nodes"].(map[string]any)
	require.True(t, ok)
	items, ok := nodes["items"].(map[string]any)
	require.True(t, ok, "nodes should be inlined")

	itemProps := items["properties"].(map[string]any)
	action := itemProps["action"].(map[string]any)
	assert.ElementsMatch(t, []any{"end-session", "switch-to-chat"}, action["enum"])
	assert.Equal(t, false, items["additionalProperties"])
}
