package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "tabd Configuration", parsed["title"])

	props, ok := parsed["properties"].(map[string]interface{})
	require.True(t, ok, "expected properties to be defined")
	for _, key := range []string{"daemon", "render", "tab"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "Extensions")
}

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(&Config{Daemon: DaemonConfig{SweepInterval: "5s"}}))
	assert.Error(t, v.Validate(&Config{Daemon: DaemonConfig{SweepInterval: "-5s"}}))
	assert.Error(t, v.Validate(&Config{Daemon: DaemonConfig{ReplyRetries: -2}}))
}
