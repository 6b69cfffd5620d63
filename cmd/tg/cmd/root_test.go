package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersAllSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"search", "sync", "watch", "serve", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, "expected %s to be registered", name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestResolvedSettings_FlagsOverridePersistedSettings(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	origProvider, origRegion := flagProvider, flagRegion
	defer func() { flagProvider, flagRegion = origProvider, origRegion }()

	flagProvider = "local"
	flagRegion = "aws-us-west-2"

	provider, region, err := resolvedSettings()
	require.NoError(t, err)
	assert.Equal(t, "local", provider)
	assert.Equal(t, "aws-us-west-2", region)
}

func TestResolvedSettings_FallsBackToPersistedWhenFlagsEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	origProvider, origRegion := flagProvider, flagRegion
	defer func() { flagProvider, flagRegion = origProvider, origRegion }()
	flagProvider, flagRegion = "", ""

	cfgPath := filepath.Join(dir, "turbogrep", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfgPath), 0o755))
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"turbopuffer_region":"gcp-us-central1","embedding_provider":"voyage"}`), 0o644))

	provider, region, err := resolvedSettings()
	require.NoError(t, err)
	assert.Equal(t, "voyage", provider)
	assert.Equal(t, "gcp-us-central1", region)
}
