package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRequestParsesDates(t *testing.T) {
	req, err := reportRequest("2024-01-01", "2024-01-31", "A1", []string{"santri-1"})
	require.NoError(t, err)
	assert.Equal(t, 2024, req.Start.Year())
	assert.Equal(t, time.January, req.End.Month())
	assert.Equal(t, 31, req.End.Day())
	assert.Equal(t, "A1", req.Room)

	_, err = reportRequest("01/01/2024", "2024-01-31", "", nil)
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", "wali-1", "--role", "wali_santri", "--name", "Bu Siti"})
	require.NoError(t, cmd.Execute())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.NotEmpty(t, payload["token"])
}

func TestTokenCommandRequiresUser(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	assert.Error(t, cmd.Execute())
}
