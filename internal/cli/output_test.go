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
	err := NewExitError(ExitCommandError, "file not found")
	assert.Equal(t, "file not found", err.Error())
	assert.Equal(t, ExitCommandError, err.Code)
	assert.Nil(t, err.Unwrap())
}

func TestWrapExitError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapExitError(ExitFailure, "journal write failed", cause)
	assert.Equal(t, "journal write failed: disk on fire", err.Error())
	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain exit error", NewExitError(ExitCommandError, "boom"), ExitCommandError},
		{"failure exit error", NewExitError(ExitFailure, "boom"), ExitFailure},
		{"wrapped exit error", fmt.Errorf("context: %w", NewExitError(ExitCommandError, "boom")), ExitCommandError},
		{"non-exit error", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestFormatterSuccessText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success("all good"))
	assert.Equal(t, "all good\n", buf.String())
}

func TestFormatterSuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"count": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["count"])
}

func TestFormatterErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error("E103", "unknown endpoint", nil))
	assert.Equal(t, "Error [E103]: unknown endpoint\n", buf.String())
}

func TestFormatterErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error("E103", "unknown endpoint", "relay double"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E103", resp.Error.Code)
	assert.Equal(t, "unknown endpoint", resp.Error.Message)
	assert.Equal(t, "relay double", resp.Error.Details)
}

func TestVerboseLogGated(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag}

	f.VerboseLog("should not appear")
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("blueprint has %d facts", 2)
	assert.Equal(t, "blueprint has 2 facts\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics must not pollute JSON output")
}
