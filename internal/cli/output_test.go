package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	plain := NewExitError(ExitCommandError, "bad path")
	assert.Equal(t, "bad path", plain.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(plain))

	inner := errors.New("disk full")
	wrapped := WrapExitError(ExitFailure, "write failed", inner)
	assert.Equal(t, "write failed: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestGetExitCode_Defaults(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))

	// Wrapped ExitErrors still carry their code.
	wrapped := fmt.Errorf("context: %w", NewExitError(ExitCommandError, "inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestFormatter_SuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"runs": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"runs": float64(3)}, resp.Data)
}

func TestFormatter_SuccessText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success("ingested 365 rows"))
	assert.Equal(t, "ingested 365 rows\n", buf.String())
}

func TestFormatter_ErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeNotFound, "config directory not found", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "not found")
}

func TestFormatter_ErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeStaleData, "data changed since run", "fingerprint mismatch"))
	assert.Contains(t, buf.String(), "Error [E008]: data changed since run")
	assert.NotContains(t, buf.String(), "fingerprint mismatch", "details only print in verbose mode")

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeStaleData, "data changed since run", "fingerprint mismatch"))
	assert.Contains(t, buf.String(), "Details: fingerprint mismatch")
}

func TestFormatter_VerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut}

	f.VerboseLog("skipped %d rows", 2)
	assert.Empty(t, errOut.String(), "quiet unless verbose")

	f.Verbose = true
	f.VerboseLog("skipped %d rows", 2)
	assert.Equal(t, "skipped 2 rows\n", errOut.String())
	assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")
}

func TestFormatter_GetErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer

	f := &OutputFormatter{Writer: &out}
	assert.Same(t, f.Writer, f.GetErrWriter())

	f.ErrWriter = &errOut
	assert.NotSame(t, f.Writer, f.GetErrWriter())
}
