package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyTemplate_ShapeSelectsMode(t *testing.T) {
	var single BodyTemplate
	require.NoError(t, json.Unmarshal([]byte(`{"template":"hello"}`), &single))
	assert.False(t, single.IsWeighted())
	assert.Equal(t, "hello", single.Template)

	var weighted BodyTemplate
	require.NoError(t, json.Unmarshal([]byte(`[
		{"weight":70,"delay":0,"status_code":200,"headers":{},"template":"ok"},
		{"weight":30,"delay":250,"status_code":500,"headers":{},"template":"boom"}
	]`), &weighted))
	require.True(t, weighted.IsWeighted())
	require.Len(t, weighted.Entries, 2)
	assert.Equal(t, 250, weighted.Entries[1].Delay)

	var empty BodyTemplate
	require.NoError(t, json.Unmarshal([]byte(`[]`), &empty))
	assert.True(t, empty.IsWeighted(), "an empty array is still weighted")

	var bad BodyTemplate
	assert.Error(t, json.Unmarshal([]byte(`"text"`), &bad))
}

func TestBodyTemplate_MarshalKeepsShape(t *testing.T) {
	rule := Rule{BodyTemplate: WeightedBody(nil)}
	data, err := json.Marshal(rule)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body_template":[]`)

	rule.BodyTemplate = SingleBody("x")
	data, err = json.Marshal(rule)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body_template":{"template":"x"}`)
}
