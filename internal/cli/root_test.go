package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CEASEFIRE_DB", "")
	t.Setenv("CEASEFIRE_SEED", "0")

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"ingest", "validate", "fit", "report", "runs", "test"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %q", name)
	}
}

func TestRootCommand_RejectsBadFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", "testdata/valid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestValidateCommand_ValidConfig(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", "testdata/valid")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test-city", data["name"])
	assert.Equal(t, float64(2), data["windows"])
	assert.NotEmpty(t, data["config_hash"])
}

func TestValidateCommand_CompileFailure(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", "testdata/badname")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigName, resp.Error.Code)
}

func TestValidateCommand_MissingDirectory(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestFitCommand_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "fit", "testdata/valid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "CEASEFIRE_DB")
}
