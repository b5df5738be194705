package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/trunkreview/internal/store/jsonfile"
	"github.com/colonyops/trunkreview/internal/trunkreview"
)

func execCmd(app *trunkreview.App, flags *Flags, script string) *ExecCmd {
	cmd := NewExecCmd(flags, app)
	cmd.stdin = strings.NewReader(script)
	cmd.interactive = false
	return cmd
}

func TestExec_DraftSession(t *testing.T) {
	flags, app := newTestApp(t)
	initWorkspace(t, flags, app)

	script := `[
		{"command": "start-draft", "file": "main.go", "range": "10-12", "text": "first"},
		{"command": "reply", "thread": "$1", "text": "second"},
		{"command": "finish-draft", "thread": "$1", "text": "done"}
	]`

	out, _, err := run(t, execCmd(app, flags, script), "exec")
	require.NoError(t, err)

	var results []trunkreview.StepResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.True(t, results[0].Draft)
	assert.True(t, results[1].Draft)
	assert.False(t, results[2].Draft)
	assert.Equal(t, results[0].Thread, results[2].Thread)
	assert.Equal(t, 3, results[2].Comments)

	threads := readList(t, app, jsonfile.UnresolvedFile)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Comments, 3)
	assert.Equal(t, "done", threads[0].Comments[2].Text)
}

func TestExec_StopsAtFirstError(t *testing.T) {
	flags, app := newTestApp(t)
	initWorkspace(t, flags, app)

	script := `[
		{"command": "create", "file": "a.go", "range": "1", "text": "kept"},
		{"command": "reply", "thread": "missing", "text": "lost"},
		{"command": "create", "file": "b.go", "range": "1", "text": "never"}
	]`

	out, _, err := run(t, execCmd(app, flags, script), "exec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2")

	var results []trunkreview.StepResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 1)

	threads := readList(t, app, jsonfile.UnresolvedFile)
	require.Len(t, threads, 1)
	assert.Equal(t, "a.go", threads[0].File)
}

func TestExec_ScriptFile(t *testing.T) {
	flags, app := newTestApp(t)
	initWorkspace(t, flags, app)

	path := filepath.Join(t.TempDir(), "script.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"command": "create", "file": "a.go", "range": "4", "text": "hi"}]`), 0o644))

	cmd := execCmd(app, flags, "")
	_, _, err := run(t, cmd, "exec", "-f", path)
	require.NoError(t, err)

	assert.Len(t, readList(t, app, jsonfile.UnresolvedFile), 1)
}

func TestExec_InteractiveStdinRejected(t *testing.T) {
	flags, app := newTestApp(t)
	initWorkspace(t, flags, app)

	cmd := execCmd(app, flags, "")
	cmd.interactive = true

	_, _, err := run(t, cmd, "exec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input provided")
}
