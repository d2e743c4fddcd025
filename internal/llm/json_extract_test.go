package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFromCodeBlock(t *testing.T) {
	response := "Here is the analysis:\n```json\n{\"stop\": false, \"gap\": \"no DoS coverage\"}\n```\nDone."

	jsonStr, err := ExtractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stop": false, "gap": "no DoS coverage"}`, jsonStr)
}

func TestExtractJSONFromUntaggedCodeBlock(t *testing.T) {
	response := "```\n{\"summary\": \"ok\"}\n```"

	jsonStr, err := ExtractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "ok"}`, jsonStr)
}

func TestExtractJSONSkipsNonJSONCodeBlocks(t *testing.T) {
	response := "```python\nprint('hi')\n```\nThe result: {\"ok\": true}"

	jsonStr, err := ExtractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, jsonStr)
}

func TestExtractJSONRawObjectWithSurroundingText(t *testing.T) {
	response := `Sure! The threats are {"threats": [{"name": "a"}]} as requested.`

	jsonStr, err := ExtractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"threats": [{"name": "a"}]}`, jsonStr)
}

func TestExtractJSONHandlesBracesInsideStrings(t *testing.T) {
	response := `{"gap": "missing {admin} coverage"}`

	jsonStr, err := ExtractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gap": "missing {admin} coverage"}`, jsonStr)
}

func TestExtractJSONArray(t *testing.T) {
	response := `[{"name": "a"}, {"name": "b"}]`

	jsonStr, err := ExtractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name": "a"}, {"name": "b"}]`, jsonStr)
}

func TestExtractJSONNoJSON(t *testing.T) {
	_, err := ExtractJSON("I could not produce the requested output.")
	assert.Error(t, err)
}

func TestExtractJSONUnbalanced(t *testing.T) {
	_, err := ExtractJSON(`{"stop": false, "gap": "truncated`)
	assert.Error(t, err)
}
