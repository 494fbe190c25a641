package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chyiyaqing/trendscope/internal/trend"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPromptCommand(t *testing.T) {
	out, err := execute(t, "", "prompt", "--platform", "tiktok", "--window", "week")

	require.NoError(t, err)
	assert.Contains(t, out, "TikTok")
	assert.Contains(t, out, "VIDEO|")
	assert.Contains(t, out, "TOPIC|")
}

func TestPromptCommand_BadSelector(t *testing.T) {
	_, err := execute(t, "", "prompt", "--platform", "myspace")

	assert.ErrorIs(t, err, trend.ErrUnknownPlatform)
}

func TestParseCommand_WithRefs(t *testing.T) {
	dir := t.TempDir()
	replyFile := filepath.Join(dir, "reply.txt")
	refsFile := filepath.Join(dir, "refs.json")
	require.NoError(t, os.WriteFile(replyFile, []byte(
		"VIDEO|Insta|@chef|Pasta Hack|2.5M|Quick dinner|Food\nVIDEO|broken\nTOPIC|Cooking\n"), 0o644))
	require.NoError(t, os.WriteFile(refsFile, []byte(
		`[{"title":"Pasta Hack reel","uri":"https://instagram.example/p/1"}]`), 0o644))

	out, err := execute(t, "", "parse", replyFile, "--refs", refsFile, "--json")

	require.NoError(t, err)
	var res trend.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Cooking", res.Topic)
	require.Len(t, res.Records, 1)
	assert.Equal(t, trend.Instagram, res.Records[0].Platform)
	assert.Equal(t, "https://instagram.example/p/1", res.Records[0].URL)
	assert.True(t, res.Records[0].Grounded)
}

func TestParseCommand_StdinText(t *testing.T) {
	out, err := execute(t, "VIDEO|YouTube|Band|Song|1M|Live set|Music\n", "parse", "-")

	require.NoError(t, err)
	assert.Contains(t, out, "1. [YouTube] Song")
	assert.Contains(t, out, "https://www.youtube.com/results?search_query=Song (search)")
	assert.Contains(t, out, "Topic: General Trends")
}

func TestParseCommand_EmptyReply(t *testing.T) {
	out, err := execute(t, "no structured lines here", "parse", "-")

	require.NoError(t, err)
	assert.Contains(t, out, "No specific trends found.")
}

func TestParseCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "missing.txt"))

	assert.Error(t, err)
}

func TestRunsCommand_Empty(t *testing.T) {
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "runs.db"))

	out, err := execute(t, "", "runs")

	require.NoError(t, err)
	assert.Contains(t, out, "No refresh runs recorded yet.")
}
