package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"text/tabwriter"

	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func withOutput(t *testing.T, format string) {
	t.Helper()
	prev := output
	output = format
	t.Cleanup(func() { output = prev })
}

func TestRenderFormats(t *testing.T) {
	state := map[string]types.DrainState{"zk1": {Drained: true, Reason: "disk"}}

	withOutput(t, "json")
	var buf bytes.Buffer
	require.NoError(t, render(&buf, state, nil))
	var fromJSON map[string]types.DrainState
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, "disk", fromJSON["zk1"].Reason)

	output = "yaml"
	buf.Reset()
	require.NoError(t, render(&buf, state, nil))
	var fromYAML map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, true, fromYAML["zk1"]["drained"])

	output = "table"
	buf.Reset()
	require.NoError(t, render(&buf, state, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NODE\tDRAINED")
		fmt.Fprintln(tw, "zk1\tyes")
	}))
	assert.Contains(t, buf.String(), "zk1   yes")

	output = "xml"
	assert.Error(t, render(&buf, state, nil))
}

func TestNodeCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zkbalancer.yaml")
	content := fmt.Sprintf(`nodes:
  - 127.0.0.1:1
  - 127.0.0.2:1
storage:
  data_dir: %s
  files_dir: %s
`, filepath.Join(dir, "data"), filepath.Join(dir, "files"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	run := func(args ...string) (string, error) {
		var buf bytes.Buffer
		rootCmd.SetOut(&buf)
		rootCmd.SetArgs(append([]string{"--config", path}, args...))
		err := rootCmd.Execute()
		return buf.String(), err
	}
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		output = "table"
	})

	out, err := run("node", "drain", "127.0.0.2", "--reason", "maintenance", "--actor", "tester")
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.2 drained")

	_, err = run("node", "drain", "zk9")
	assert.Error(t, err)

	out, err = run("node", "list", "-o", "json")
	require.NoError(t, err)
	var states map[string]types.DrainState
	require.NoError(t, json.Unmarshal([]byte(out), &states))
	assert.True(t, states["127.0.0.2"].Drained)
	assert.Equal(t, "maintenance", states["127.0.0.2"].Reason)
	assert.False(t, states["127.0.0.1"].Drained)
}
