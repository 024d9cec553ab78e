package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/mlexec"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "mlexec.toml")
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestVersionCommand(t *testing.T) {
	out, err := execRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mlexec dev\n", out)
}

func TestHelpMentionsCommands(t *testing.T) {
	out, err := execRoot(t, "--help")
	require.NoError(t, err)
	for _, s := range []string{"run", "validate", "version"} {
		assert.Contains(t, out, s)
	}
}

func TestValidateCommand(t *testing.T) {
	p := writeConfig(t, `
[source]
command = "/usr/bin/tail -F /var/log/app.log"
line_terminator = "|#]"
`)
	out, err := execRoot(t, "validate", "--config", p)
	require.NoError(t, err)
	assert.Contains(t, out, `ok: source "tail"`)

	bad := writeConfig(t, `
[source]
command = "echo"
line_terminator = "|#]"
batch_size = -1
`)
	_, err = execRoot(t, "validate", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")

	_, err = execRoot(t, "validate")
	assert.Error(t, err)
}

func TestRunCommandWithFlagsWritesFileSink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sh")
	}
	outFile := filepath.Join(t.TempDir(), "records.jsonl")
	out, err := execRoot(t, "run",
		"--command", `sh -c 'printf "a\nb;\nc;\n"'`,
		"--terminator", ";",
		"--batch-size", "1",
		"--sink", "file://"+outFile,
	)
	require.NoError(t, err)
	assert.Contains(t, out, `running "sh"`)

	f, err := os.Open(outFile)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	var bodies []string
	var seqs []uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var row struct {
			Body     string `json:"body"`
			BatchSeq uint64 `json:"batch_seq"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		bodies = append(bodies, row.Body)
		seqs = append(seqs, row.BatchSeq)
	}
	assert.Equal(t, []string{"a\nb;", "c;"}, bodies)
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestRunCommandInvalid(t *testing.T) {
	_, err := execRoot(t, "run", "--command", "echo")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "line_terminator"))
}

func TestApplyRunFlags(t *testing.T) {
	c := mlexec.DefaultConfig()
	c.Source.Command = "/bin/cat file"
	c.Source.Name = "cat"
	set := map[string]bool{"command": true, "restart": true, "restart-throttle": true, "http": true}
	applyRunFlags(&c, RunFlags{
		Command:         "/usr/bin/tail -F x",
		Restart:         true,
		RestartThrottle: 10,
		HTTPListen:      ":9100",
		BatchSize:       99,
		changed:         func(n string) bool { return set[n] },
	})
	assert.Equal(t, "tail", c.Source.Name)
	assert.True(t, c.Source.Restart)
	assert.Equal(t, int64(10), c.Source.RestartThrottle)
	assert.Equal(t, ":9100", c.HTTP.Listen)
	assert.Equal(t, 20, c.Source.BatchSize, "unset flags leave config alone")

	c.Source.Name = "custom"
	set["command"] = true
	applyRunFlags(&c, RunFlags{Command: "echo", changed: func(n string) bool { return set[n] }})
	assert.Equal(t, "custom", c.Source.Name)
}
