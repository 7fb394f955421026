package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func literalOf(t *testing.T, table *types.OrderedEnv, key string) string {
	t.Helper()
	v, ok := table.Get(key)
	require.True(t, ok, "missing key %q", key)
	return v.Literal
}

func TestLoadEnvFileFlatFormat(t *testing.T) {
	t.Setenv("ENVFILE_BASE", "base")
	path := writeEnvFile(t, "vars.env", "# comment\nFIRST=one\nSECOND=${ENVFILE_BASE}-two\n")

	table, err := LoadEnvFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"FIRST", "SECOND"}, table.Keys())
	assert.Equal(t, "one", literalOf(t, table, "FIRST"))
	assert.Equal(t, "base-two", literalOf(t, table, "SECOND"))
}

func TestLoadEnvFileFlatFormatRejectsMalformedLine(t *testing.T) {
	path := writeEnvFile(t, "vars.env", "NOT A PAIR\n")

	_, err := LoadEnvFile(path)
	assert.ErrorContains(t, err, "expected KEY=VALUE")
}

func TestLoadEnvFileJSON5(t *testing.T) {
	path := writeEnvFile(t, "vars.json5", `{
  // json5 comments are allowed
  PORT: 8080,
  DEBUG: true,
  NAME: "svc",
}`)

	table, err := LoadEnvFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", literalOf(t, table, "PORT"))
	assert.Equal(t, "true", literalOf(t, table, "DEBUG"))
	assert.Equal(t, "svc", literalOf(t, table, "NAME"))
}

func TestLoadEnvFileYAMLPreservesOrder(t *testing.T) {
	path := writeEnvFile(t, "vars.yml", "ZULU: z\nALPHA: a\nMID: m\n")

	table, err := LoadEnvFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ZULU", "ALPHA", "MID"}, table.Keys())
}
