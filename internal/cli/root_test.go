package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_HelpListsSweep(t *testing.T) {
	out, _, err := executeCommand("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "sweep")
	assert.Contains(t, out, "--format")
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	_, _, err := executeCommand("sweep", "--db", "ignored.db", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_RequiresDatabaseFlag(t *testing.T) {
	_, _, err := executeCommand("sweep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flags")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "sweep aborted", errors.New("source down"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "sweep aborted: source down", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "source down")
}

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Success(map[string]int{"pages": 3}))
	assert.JSONEq(t, `{"pages": 3}`, buf.String())
}
