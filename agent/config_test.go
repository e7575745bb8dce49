package agent_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/agent"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"coordinator_url": "http://localhost:7070",
		"client_id": "farm-12",
		"name": "north-field",
		"dataset_size": 150,
		"poll_interval": "2s",
		"broker_url": "tcp://localhost:1883",
		"base_topic": "farms/fl"
	}`)

	cfg, err := agent.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "farm-12", cfg.ClientID)
	assert.Equal(t, uint64(150), cfg.DatasetSize)
	assert.Equal(t, 2*time.Second, cfg.PollEvery())
	assert.Equal(t, "tcp://localhost:1883", cfg.BrokerURL)
	assert.Equal(t, "farms/fl", cfg.Topic())
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := agent.LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing coordinator url",
			content: `{"client_id": "farm-1", "dataset_size": 10}`,
		},
		{
			name:    "missing client id",
			content: `{"coordinator_url": "http://localhost:7070", "dataset_size": 10}`,
		},
		{
			name:    "zero dataset size",
			content: `{"coordinator_url": "http://localhost:7070", "client_id": "farm-1"}`,
		},
		{
			name:    "bad poll interval",
			content: `{"coordinator_url": "http://localhost:7070", "client_id": "farm-1", "dataset_size": 10, "poll_interval": "soon"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := agent.LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestPollEveryDefault(t *testing.T) {
	t.Parallel()

	cfg := agent.Config{}
	assert.Equal(t, 5*time.Second, cfg.PollEvery())
}

func TestTopicDefault(t *testing.T) {
	t.Parallel()

	cfg := agent.Config{}
	assert.Equal(t, "agrifed/fl", cfg.Topic())
}
