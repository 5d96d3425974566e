package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePolicyFile(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
policies:
  - id: default
    name: Standard
    stages:
      - {wait_minutes: 5, channel: chat, recipient_rule: worker_self}
      - {wait_minutes: 10, channel: call, recipient_rule: next_shift_occupant}
`), 0o600))

	var out bytes.Buffer
	require.NoError(t, validatePolicyFile(&out, good))
	assert.Contains(t, out.String(), "OK "+good+" (1 policies)")
	assert.Contains(t, out.String(), "[1] wait  10m  call  -> next_shift_occupant")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("policies:\n  - id: x\n    stages: []\n"), 0o600))
	out.Reset()
	assert.Error(t, validatePolicyFile(&out, bad))
	assert.Contains(t, out.String(), "INVALID")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sweep", "policy"}, names)

	root.SetArgs([]string{"sweep", "--only", "bogus"})
	root.SetOut(&bytes.Buffer{})
	assert.ErrorContains(t, root.Execute(), "--only must be")
}
