package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Brand   string            `json:"brand"`
	Token   string            `json:"token"`
	Retries int               `json:"retries"`
	Headers map[string]string `json:"headers"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "brand.json5"), `{
		// comments are allowed
		brand: "DL1961",
		retries: 5,
		headers: {accept: "application/json"},
	}`)
	writeFile(t, filepath.Join(dir, "brand.local.json5"), `{retries: 2}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "brand.json5"))
	require.NoError(t, err)
	require.Equal(t, "DL1961", cfg.Brand)
	require.Equal(t, 2, cfg.Retries)
	require.Equal(t, "application/json", cfg.Headers["accept"])
}

func TestReadConfigYamlAndEnv(t *testing.T) {
	t.Setenv("TEST_STOREFRONT_TOKEN", "shpat_123")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "brand.yaml"), "brand: AMO\ntoken: ${TEST_STOREFRONT_TOKEN}\nretries: 3\n")

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "brand.yaml"))
	require.NoError(t, err)
	require.Equal(t, "AMO", cfg.Brand)
	require.Equal(t, "shpat_123", cfg.Token)
	require.Equal(t, 3, cfg.Retries)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nothing.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestExpandEnvUnset(t *testing.T) {
	require.Equal(t, `{"a": "", "b": "$NOT_BRACED"}`, string(ExpandEnv([]byte(`{"a": "${SURELY_UNSET_VAR_123}", "b": "$NOT_BRACED"}`))))
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "TEST_DOTENV_VALUE=loaded\n")
	t.Setenv("TEST_DOTENV_VALUE", "")
	os.Unsetenv("TEST_DOTENV_VALUE")

	require.NoError(t, LoadDotenv(filepath.Join(dir, "missing.env"), path))
	require.Equal(t, "loaded", os.Getenv("TEST_DOTENV_VALUE"))
}
