package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/imjasonh/echo-operator/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crd", "echo.yaml")

	cmd := newCmd()
	cmd.SetArgs([]string{"-o", path})
	require.NoError(t, cmd.Execute())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := echo.MarshalCustomResourceDefinition()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRejectsArgs(t *testing.T) {
	cmd := newCmd()
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
