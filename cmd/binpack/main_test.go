package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/binpack/batch"
)

func TestRunSummary(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"--benchmark", "9", "--heuristics", "ffd", "--log-level", "error"}, &out)
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "INSTANCE")
	assert.Contains(t, s, "benchmark_9")
	assert.Contains(t, s, "ffd=")
}

func TestRunJSONFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pair.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"pair","capacity":10,"items":[{"id":1,"size":6,"demand":1},{"id":2,"size":5,"demand":1}]}`), 0o600))

	var out bytes.Buffer
	require.NoError(t, run([]string{"--json", "-s", "b", "--log-level", "error", path}, &out))

	var reps []batch.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &reps))
	require.Len(t, reps, 1)
	assert.Equal(t, "pair", reps[0].Instance)
	assert.Equal(t, 2, reps[0].Diagnostics.BinsUsed)
	assert.Equal(t, "spectrum", string(reps[0].Diagnostics.Strategy))
}

func TestRunFailures(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"--log-level", "error"}, &out))
	assert.Error(t, run([]string{"-s", "magic", "--benchmark", "3"}, &out))

	dir := t.TempDir()
	path := filepath.Join(dir, "big.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"big","capacity":10,"items":[{"id":1,"size":12,"demand":1}]}`), 0o600))
	err := run([]string{"--log-level", "error", path}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 instances failed")
	assert.Contains(t, out.String(), "failed")
}
