package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCommand(t *testing.T) {
	tests := []struct {
		name           string
		traces         []string
		arena          string
		limit          int
		check          bool
		wantErr        bool
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:        "single trace",
			traces:      []string{"short1.rep"},
			check:       true,
			wantContain: []string{"short1.rep", "yes", "Total", "Perf index"},
		},
		{
			name:           "all traces without checker",
			traces:         []string{"short1.rep", "coalescing.rep", "realloc.rep", "random.rep"},
			wantContain:    []string{"coalescing.rep", "realloc.rep", "random.rep", "Perf index"},
			wantNotContain: []string{" no "},
		},
		{
			name:        "mapped arena",
			traces:      []string{"realloc.rep"},
			arena:       "mmap",
			check:       true,
			wantContain: []string{"realloc.rep", "yes"},
		},
		{
			name:           "arena too small",
			traces:         []string{"short1.rep", "random.rep"},
			limit:          4096,
			check:          true,
			wantErr:        true,
			wantContain:    []string{"short1.rep", "random.rep", " no ", "out of memory"},
			wantNotContain: []string{"yes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			replayCheck = tt.check
			if tt.arena != "" {
				replayArena = tt.arena
			}
			if tt.limit != 0 {
				replayLimit = tt.limit
			}

			var args []string
			for _, name := range tt.traces {
				args = append(args, testTracePath(t, name))
			}

			output, err := captureOutput(t, func() error {
				return runReplay(args)
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("runReplay() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				assert.True(t, errors.Is(err, errTracesFailed))
			}

			assertContains(t, output, tt.wantContain)
			assertNotContains(t, output, tt.wantNotContain)
		})
	}
}

func TestReplayCommand_JSON(t *testing.T) {
	resetFlags()
	jsonOut = true

	args := []string{testTracePath(t, "short1.rep"), testTracePath(t, "coalescing.rep")}
	output, err := captureOutput(t, func() error {
		return runReplay(args)
	})
	require.NoError(t, err)
	assertJSON(t, output)

	var report ReplayReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.Equal(t, "memory", report.Arena)
	require.Len(t, report.Traces, 2)
	for _, tr := range report.Traces {
		assert.True(t, tr.Valid, tr.Path)
		assert.Empty(t, tr.Error)
		assert.Greater(t, tr.Utilization, 0.0)
		assert.LessOrEqual(t, tr.Utilization, 1.0)
		assert.Positive(t, tr.Ops)
	}
	assert.Equal(t, 2, report.Summary.Traces)
	assert.Greater(t, report.Summary.Index, 0.0)
}

func TestReplayCommand_Errors(t *testing.T) {
	t.Run("missing trace", func(t *testing.T) {
		resetFlags()
		output, err := captureOutput(t, func() error {
			return runReplay([]string{filepath.Join(t.TempDir(), "missing.rep")})
		})
		require.ErrorIs(t, err, errTracesFailed)
		assertContains(t, output, []string{"missing.rep", "no such file"})
	})

	t.Run("malformed trace", func(t *testing.T) {
		resetFlags()
		path := filepath.Join(t.TempDir(), "bad.rep")
		require.NoError(t, os.WriteFile(path, []byte("1 1 1 1\nq 0 8\n"), 0o644))

		output, err := captureOutput(t, func() error {
			return runReplay([]string{path})
		})
		require.ErrorIs(t, err, errTracesFailed)
		assertContains(t, output, []string{"bad.rep", `unknown request "q"`})
	})

	t.Run("unknown arena", func(t *testing.T) {
		resetFlags()
		replayArena = "disk"
		_, err := captureOutput(t, func() error {
			return runReplay([]string{testTracePath(t, "short1.rep")})
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown provider kind "disk"`)
	})
}

func TestReplayCommand_Quiet(t *testing.T) {
	resetFlags()
	quiet = true

	output, err := captureOutput(t, func() error {
		return runReplay([]string{testTracePath(t, "short1.rep")})
	})
	require.NoError(t, err)
	assert.Empty(t, output)
}
