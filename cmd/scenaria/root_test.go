package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/scenaria/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supportYAML = `scenario:
  name: Support
  system_prompt: You are an angry customer.
conditions:
  - id: 1
    description: apologizes
phases:
  - id: 1
    name: complaint
    system_prompt: Complain loudly.
    success_phases: [2]
    failure_phases: []
  - id: 2
    name: wrap up
    system_prompt: ""
    success_phases: []
    failure_phases: []
    closure: true
phase_conditions:
  - phase_id: 1
    conditions_id: 1
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Scenaria v"))
	assert.NotContains(t, strings.TrimSuffix(out, "\n"), "\n")
}

func TestValidateCommand_Files(t *testing.T) {
	dir := t.TempDir()
	broken := strings.Replace(supportYAML, "success_phases: [2]", "success_phases: [9]", 1)
	testutils.WriteFiles(t, dir, map[string]string{"support.yaml": supportYAML, "broken.yaml": broken})

	out, err := execute(t, "validate", filepath.Join(dir, "support.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "support.yaml: valid")

	out, err = execute(t, "validate", filepath.Join(dir, "support.yaml"), filepath.Join(dir, "broken.yaml"))
	assert.ErrorContains(t, err, "1 of 2")
	assert.Contains(t, out, "broken.yaml: invalid")
	assert.Contains(t, out, "unknown phase 9")
}

func TestGraphCommand_File(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{"support.yaml": supportYAML})

	out, err := execute(t, "graph", filepath.Join(dir, "support.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))
}

func TestPublishAndExport(t *testing.T) {
	src := t.TempDir()
	library := t.TempDir()
	testutils.WriteFiles(t, src, map[string]string{"support.yaml": supportYAML})
	t.Chdir(t.TempDir())

	out, err := execute(t, "publish", "--dir", library, filepath.Join(src, "support.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Published 'support' version 1.")

	out, err = execute(t, "publish", "--dir", library, "--id", "support", filepath.Join(src, "support.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "version 2.")

	target := filepath.Join(t.TempDir(), "support.json")
	_, err = execute(t, "export", "--dir", library, "--out", target, "support")
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Support"`)

	_, err = execute(t, "export", "--dir", library, "--out", "", "--format", "toml", "support")
	assert.Error(t, err)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "support", documentID("library/support.yaml"))
	assert.Equal(t, "cold-call", documentID("cold-call.json"))
}
