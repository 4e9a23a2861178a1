package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalStringUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OptionalString
	}{
		{name: "absent", body: `{}`, want: OptionalString{}},
		{name: "null", body: `{"title": null}`, want: OptionalString{Present: true, Null: true}},
		{name: "empty", body: `{"title": ""}`, want: OptionalString{Present: true}},
		{name: "value", body: `{"title": "Buy milk"}`, want: OptionalString{Present: true, Value: "Buy milk"}},
		{name: "number", body: `{"title": 42}`, want: OptionalString{Present: true, NotString: true}},
		{name: "object", body: `{"title": {"a": 1}}`, want: OptionalString{Present: true, NotString: true}},
		{name: "bool", body: `{"title": false}`, want: OptionalString{Present: true, NotString: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var req CreateTaskRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.want, req.Title)
		})
	}
}

func TestMalformedBodyStillFails(t *testing.T) {
	var req UpdateTaskRequest
	assert.Error(t, json.Unmarshal([]byte(`{"title": "x"`), &req))
}

func TestTaskResponseNullDescription(t *testing.T) {
	b, err := json.Marshal(TaskResponse{ID: 1, Title: "t", Status: "pending"})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "description")
	assert.Nil(t, m["description"])
	for _, key := range []string{"id", "title", "status", "created_at", "updated_at"} {
		assert.Contains(t, m, key)
	}
}
