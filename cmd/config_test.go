package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gauravmishra2744/Awaaj/internal/config"
	"github.com/gauravmishra2744/Awaaj/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
// AI is disabled so commands never reach the network.
func testEnv(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	config.SetDefaults(viper.GetViper(), dir)
	viper.Set("ai.provider", config.ProviderNone)

	out := &bytes.Buffer{}
	ui = &output.UI{Out: out, ErrOut: &bytes.Buffer{}}
	dryRun = false
	configForce = false

	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
		}
		dataStore = nil
		service = nil
	})

	return dir, out
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir, _ := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	info, err := os.Stat(cfgPath)
	require.NoError(t, err, "config file should exist")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "awaaz configuration")
	assert.Contains(t, string(data), "provider: \"none\"")
}

func TestConfigInit_RoundTrips(t *testing.T) {
	dir, _ := testEnv(t)
	require.NoError(t, configInitRun())

	v := viper.New()
	config.SetDefaults(v, dir)
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderNone, cfg.AI.Provider)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir, _ := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir, _ := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "awaaz configuration")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir, _ := testEnv(t)
	dryRun = true
	ui.DryRun = true

	err := configInitRun()
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	_, out := testEnv(t)
	viper.Set("smtp.password", "hunter2")

	require.NoError(t, configShowRun())
	assert.Contains(t, out.String(), "Config file: (none)")
	assert.Contains(t, out.String(), "smtp.password")
	assert.NotContains(t, out.String(), "hunter2")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "AWAAZ_AI_BASE_URL", envVarFor("ai.base_url"))
	assert.Equal(t, "AWAAZ_DB_PATH", envVarFor("db_path"))
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	t.Setenv("AWAAZ_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "AWAAZ_TEST_KEY", fileValues), "env")
	assert.Contains(t, detectSource("key_a", "AWAAZ_KEY_A_NONEXISTENT", fileValues), "file")
	assert.Contains(t, detectSource("key_b", "AWAAZ_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	var input map[string]any
	require.NoError(t, yaml.Unmarshal([]byte("top: val\nnested:\n  a: 1\n  b: 2\n"), &input))

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}
