package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.db")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, path))

	report := out.String()
	assert.Contains(t, report, "database: "+path)
	assert.Contains(t, report, "tables:   sessions, tasks, users")
	assert.Contains(t, report, "users:    0")
	assert.Contains(t, report, "tasks:    0")
}

func TestResolveDBPath_Env(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/elsewhere.db")
	assert.Equal(t, "/tmp/elsewhere.db", resolveDBPath())
}
