package trail

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bento-labs/sense-go/core"
)

func TestFileSinkAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	recs := []*Record{
		{
			RequestID:        "req-1",
			PayloadRaw:       map[string]interface{}{"text": "my ssn is 123-45-6789"},
			PayloadRedacted:  map[string]interface{}{"text": "my ssn is [SSN_REDACTED]"},
			Verdict:          core.VerdictValid,
			ComplianceScore:  1.0,
			HasSensitiveData: true,
		},
		{
			RequestID:       "req-2",
			PayloadRaw:      "hello",
			PayloadRedacted: "hello",
			Verdict:         core.VerdictCancelled,
			Reasoning:       "User aborted the transaction.",
		},
	}

	for _, rec := range recs {
		require.NoError(t, sink.Append(context.Background(), rec))
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}

	require.Len(t, lines, 2)
	assert.Equal(t, "req-1", lines[0].RequestID)
	assert.Equal(t, core.VerdictValid, lines[0].Verdict)
	assert.True(t, lines[0].HasSensitiveData)
	assert.False(t, lines[0].Timestamp.IsZero())
	assert.Equal(t, core.VerdictCancelled, lines[1].Verdict)
}

func TestFileSinkCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trail.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Append(context.Background(), &Record{RequestID: "req-1"}))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileSinkRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trail.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()
	sink.rotationSize = 64

	for i := 0; i < 4; i++ {
		require.NoError(t, sink.Append(context.Background(), &Record{
			RequestID:  "req-rotate",
			PayloadRaw: "some payload content that pushes the file over the threshold",
		}))
	}

	rotated, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)

	// The live file was reopened and keeps accepting writes.
	require.NoError(t, sink.Append(context.Background(), &Record{RequestID: "req-after"}))
}
