package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/dbfixture/internal/conf"
	"github.com/tphakala/dbfixture/internal/fixture"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"up", "seed", "reset"} {
		assert.Contains(t, out, sub)
	}
	assert.Contains(t, out, "--env-file")
}

func TestSeed_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "seed", "--env-file", "", "--url", "mongodb://localhost:1/spacex")
	require.ErrorIs(t, err, fixture.ErrEmptyKey)
}

func TestReset_RequiresURL(t *testing.T) {
	t.Setenv(conf.DefaultURLKey, "")

	_, err := execute(t, "reset", "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), conf.DefaultURLKey)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ready_interval: 0s\n"), 0o600))

	_, err := execute(t, "reset", "--env-file", "", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ready_interval")
}

func TestResolveURL(t *testing.T) {
	s := conf.Defaults()
	s.URLKey = "DBFIXTURE_TEST_RESOLVE_URL"

	t.Setenv(s.URLKey, "mongodb://published:27017/spacex")

	url, err := resolveURL("mongodb://flag:27017/spacex", &s)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://flag:27017/spacex", url, "flag wins")

	url, err = resolveURL("", &s)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://published:27017/spacex", url)

	t.Setenv(s.URLKey, "")
	_, err = resolveURL("", &s)
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "DBFIXTURE_TEST_ENV_FILE"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv(key))

	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")), "missing file is ignored")
	require.NoError(t, loadEnvFile(""))
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	const key = "DBFIXTURE_TEST_ENV_KEEP"
	t.Setenv(key, "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv(key))
}
