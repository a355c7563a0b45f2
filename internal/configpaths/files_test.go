package configpaths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCandidatePathsUserFirst(t *testing.T) {
	tests := []struct {
		name string
		path string
		pick func(j, y, tm []string) []string
	}{
		{"json", "/tmp/rx.json", func(j, _, _ []string) []string { return j }},
		{"yaml", "/tmp/rx.yaml", func(_, y, _ []string) []string { return y }},
		{"yml", "/tmp/rx.yml", func(_, y, _ []string) []string { return y }},
		{"toml", "/tmp/rx.toml", func(_, _, tm []string) []string { return tm }},
		{"no extension defaults to json", "/tmp/rx", func(j, _, _ []string) []string { return j }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, y, tm := ConfigCandidatePaths(tt.path)
			got := tt.pick(j, y, tm)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.path, got[0])
		})
	}
}

func TestConfigCandidatePathsXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	j, _, tm := ConfigCandidatePaths("")
	assert.Contains(t, j, filepath.Join(xdg, "padlink", "receive.json"))
	assert.Contains(t, tm, filepath.Join(xdg, "padlink", "send.toml"))
}

func TestDefaultNamedConfigPath(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	p, err := DefaultNamedConfigPath("receive", "yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "padlink", "receive.yaml"), p)

	p, err = DefaultNamedConfigPath("send", "ini")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "padlink", "send.json"), p)
}
