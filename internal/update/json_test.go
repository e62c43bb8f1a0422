package update

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleUpdate_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Added("b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"added","modules":["a","b"]}`, string(data))

	data, err = json.Marshal(Partial(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"partial","added":[],"deleted":[]}`, string(data))

	_, err = json.Marshal(ModuleUpdate{Kind: "total"})
	assert.Error(t, err)
}

func TestModuleUpdate_UnmarshalJSON(t *testing.T) {
	var u ModuleUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"type":"partial","added":["x"]}`), &u))
	assert.Equal(t, KindPartial, u.Kind)
	assert.Equal(t, []string{"x"}, u.AddedIDs())
	assert.Empty(t, u.DeletedIDs())

	err := json.Unmarshal([]byte(`{"type":"replaced"}`), &u)
	assert.ErrorContains(t, err, `unknown module update type "replaced"`)
}

func TestInstruction_UnmarshalJSON(t *testing.T) {
	payload := `{
		"chunks": {"static/main.js": {"type": "deleted", "modules": ["m1"]}},
		"merged": [
			{"entries": {"e1": {"code": "a"}}, "chunks": {"c1": {"type": "added", "modules": ["m2"]}}},
			{"entries": {"e1": {"code": "b"}}, "chunks": {"c1": {"type": "partial", "added": ["m3"], "deleted": ["m2"]}}}
		]
	}`

	var in Instruction
	require.NoError(t, json.Unmarshal([]byte(payload), &in))

	require.Contains(t, in.Chunks, "static/main.js")
	assert.Equal(t, []string{"m1"}, in.Chunks["static/main.js"].ModuleIDs())

	require.NotNil(t, in.Merged)
	assert.JSONEq(t, `{"code": "b"}`, string(in.Merged.Entries["e1"]))
	assert.Equal(t, KindAdded, in.Merged.Chunks["c1"].Kind)
	assert.Equal(t, []string{"m3"}, in.Merged.Chunks["c1"].ModuleIDs())
}

func TestInstruction_JSONPresence(t *testing.T) {
	var in Instruction
	require.NoError(t, json.Unmarshal([]byte(`{"chunks": {}}`), &in))
	assert.NotNil(t, in.Chunks)
	assert.Nil(t, in.Merged)

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunks": {}}`, string(data))

	data, err = json.Marshal(Instruction{Merged: &MergedUpdate{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"merged": [{}]}`, string(data))
}

func TestInstruction_UnmarshalJSON_InvalidMergedFold(t *testing.T) {
	payload := `{"merged": [
		{"chunks": {"c": {"type": "added", "modules": ["a"]}}},
		{"chunks": {"c": {"type": "added", "modules": ["b"]}}}
	]}`

	var in Instruction
	err := json.Unmarshal([]byte(payload), &in)
	var ie *InvariantError
	assert.ErrorAs(t, err, &ie)
}
