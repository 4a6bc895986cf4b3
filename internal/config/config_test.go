package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shepherd.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
grace_period: 3s
log_dir: /tmp/shep-test
services:
  - id: media
    command: livekit-server
    args: ["--dev"]
  - id: backend
    command: uv
    args: ["run", "src/agent.py", "dev"]
    env:
      LOG_LEVEL: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.GracePeriod)
	assert.Equal(t, "/tmp/shep-test", cfg.LogDir)
	assert.True(t, cfg.History)
	require.Len(t, cfg.Services, 2)
	assert.Equal(t, "media", cfg.Services[0].ID)
	assert.Equal(t, []string{"--dev"}, cfg.Services[0].Args)
	assert.Equal(t, "debug", cfg.Services[1].Env["LOG_LEVEL"])
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
services:
  - id: only
    command: sleep
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.GracePeriod)
	assert.Equal(t, ".shepherd", cfg.LogDir)
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "services: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no services",
			yaml:    "grace_period: 1s\n",
			wantErr: "no services",
		},
		{
			name: "empty id",
			yaml: `
services:
  - command: sleep
`,
			wantErr: "empty id",
		},
		{
			name: "empty command",
			yaml: `
services:
  - id: a
`,
			wantErr: "empty command",
		},
		{
			name: "duplicate id",
			yaml: `
services:
  - id: a
    command: sleep
  - id: a
    command: sleep
`,
			wantErr: "duplicate service id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Services = cfg.Services[:1]
	cfg.Services[0].Dir = dir
	assert.NoError(t, ValidateDirs(cfg))

	cfg.Services[0].Dir = filepath.Join(dir, "missing")
	assert.Error(t, ValidateDirs(cfg))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Len(t, cfg.Services, 3)
	assert.Equal(t, "media", cfg.Services[0].ID)
	assert.Equal(t, "backend", cfg.Services[1].ID)
	assert.Equal(t, "frontend", cfg.Services[2].ID)
}
