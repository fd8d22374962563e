package supervisor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlain(t *testing.T) {
	obj, err := ExtractJSON(`{"goal": "ship it", "process": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, "ship it", obj["goal"])
}

func TestExtractJSONFenced(t *testing.T) {
	content := "```json\n{\"status\": \"FINISH\"}\n```"
	obj, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, "FINISH", obj["status"])
}

func TestExtractJSONSurroundedByNoise(t *testing.T) {
	content := "Sure! Here's my decision:\n\n" +
		`{"next_agent": "Writer", "instruction": "draft it", "status": "CONTINUE"}` +
		"\n\nLet me know if you need anything else."
	obj, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, "Writer", obj["next_agent"])
	assert.Equal(t, "CONTINUE", obj["status"])
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	content := `prefix {"instruction": "use {placeholders} and \"quotes\" here", "status": "CONTINUE"} suffix`
	obj, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `use {placeholders} and "quotes" here`, obj["instruction"])
}

func TestExtractJSONEscapedQuoteDoesNotEndString(t *testing.T) {
	content := `{"a": "closing brace after escape \" }", "b": 1}`
	obj, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["b"])
}

func TestExtractJSONFirstToLastBraceFallback(t *testing.T) {
	// The first { opens an unbalanced span; only first-{ to last-} parses.
	content := `{"a": {"nested": true}}`
	obj, err := ExtractJSON("noise " + content)
	require.NoError(t, err)
	nested, ok := obj["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, nested["nested"])
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("there is no json here at all")
	assert.Error(t, err)
}

func TestExtractJSONIdempotent(t *testing.T) {
	noisy := "Decision below.\n" + `{"next_agent": "Coder", "status": "CONTINUE"}` + "\ntrailing"
	first, err := ExtractJSON(noisy)
	require.NoError(t, err)

	raw, err := json.Marshal(first)
	require.NoError(t, err)
	second, err := ExtractJSON(string(raw))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParsePlanNormalizesKeys(t *testing.T) {
	plan, err := ParsePlan(`{"Goal": "G", "Deliverables": "D", "Process": ["s1", "s2"], "Explanation": "why"}`)
	require.NoError(t, err)
	assert.Equal(t, "G", plan.Goal)
	assert.Equal(t, "D", plan.Deliverables)
	assert.Equal(t, []string{"s1", "s2"}, plan.Process)
}

func TestParseDecisionDefaultsToContinue(t *testing.T) {
	decision, err := ParseDecision(`{"next_agent": "Writer", "instruction": "go"}`)
	require.NoError(t, err)
	assert.Equal(t, StatusContinue, decision.Status)
	assert.Equal(t, "Writer", decision.NextAgent)
}

func TestParseDecisionFinish(t *testing.T) {
	decision, err := ParseDecision(`{"next_agent": "", "instruction": "all done", "status": "finish"}`)
	require.NoError(t, err)
	assert.Equal(t, StatusFinish, decision.Status)
}

func TestParseDecisionUpdateProcess(t *testing.T) {
	decision, err := ParseDecision(`{"next_agent": "A", "instruction": "x", "update_process": ["one", "two"], "status": "CONTINUE"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, decision.UpdateProcess)
}

func TestBuildPromptContainsRosterAndProtocol(t *testing.T) {
	prompt := BuildPrompt("You coordinate.", []RosterEntry{
		{Name: "Writer", Role: "writes things"},
	}, InitProtocol)
	assert.Contains(t, prompt, "You coordinate.")
	assert.Contains(t, prompt, "- Name: Writer, Role: writes things")
	assert.Contains(t, prompt, "PLAN INITIALIZATION")
}
