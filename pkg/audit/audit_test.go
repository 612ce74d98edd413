package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_WritesTimestampedLine(t *testing.T) {
	dir := t.TempDir()
	l := New(Options{Path: filepath.Join(dir, "audit.log")})
	defer l.Close()

	require.NoError(t, l.Event("orchestrator", "cycle started"))
	require.NoError(t, l.Eventf("harness", "validation run: %d pass", 5))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[orchestrator] cycle started")
	assert.Contains(t, lines[1], "[harness] validation run: 5 pass")

	// Each line starts with an RFC3339 timestamp
	for _, line := range lines {
		ts := strings.SplitN(line, " ", 2)[0]
		_, err := time.Parse(time.RFC3339, ts)
		assert.NoError(t, err, "line %q must start with a timestamp", line)
	}
}

func TestEvent_ConcurrentWritersNeverInterleave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l := New(Options{Path: path})

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = l.Eventf("writer", "w=%d i=%d payload=%s", w, i, strings.Repeat("x", 64))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.Contains(t, line, "[writer] w=", "no partial lines")
		assert.True(t, strings.HasSuffix(line, strings.Repeat("x", 64)), "line truncated: %q", line)
	}
}

func TestRotation_PreservesEntriesAcrossBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l := New(Options{Path: path, MaxGenerations: 7, RotateEvery: 150 * time.Millisecond})

	require.NoError(t, l.Event("test", "before rotation"))

	// Let exactly one rotation tick pass, then write again
	time.Sleep(220 * time.Millisecond)
	require.NoError(t, l.Event("test", "after rotation"))
	require.NoError(t, l.Close())

	// The current file holds the post-rotation entry
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after rotation")

	// The pre-rotation entry lives on in a rotated generation
	matches, err := filepath.Glob(filepath.Join(dir, "audit-*"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches, "expected at least one rotated generation")
}
