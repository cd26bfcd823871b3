package changelog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

func testEvents() []inventory.ChangeEvent {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	return []inventory.ChangeEvent{
		{UUID: "uuid-1", Field: "city", Old: "Austin", New: "Dallas", Timestamp: at},
		{UUID: "uuid-1", Field: "postal_code", Old: "78701", New: "75201", Timestamp: at},
		{UUID: "uuid-2", Field: "vin", Old: "VINA", New: "VINB", Timestamp: at.Add(time.Minute)},
	}
}

// The change-log line format is consumed by operators and downstream
// grep; pin it with a golden file.
func TestFormatEvent_Golden(t *testing.T) {
	var buf bytes.Buffer
	for _, ev := range testEvents() {
		buf.WriteString(FormatEvent(ev))
		buf.WriteByte('\n')
	}

	g := goldie.New(t)
	g.Assert(t, "change_lines", buf.Bytes())
}

func TestFileRecorder_AppendsAndEchoes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.log")
	var console bytes.Buffer
	r := NewFileRecorder(path, &console)

	for _, ev := range testEvents() {
		require.NoError(t, r.Record(ev))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "[2026-08-23 12:00:00] Change detected for uuid-1: city changed from 'Austin' to 'Dallas'", lines[0])

	assert.Equal(t, string(data), console.String(), "console must mirror the file")
}

func TestFileRecorder_AppendsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.log")
	ev := testEvents()[0]

	require.NoError(t, NewFileRecorder(path, nil).Record(ev))
	require.NoError(t, NewFileRecorder(path, nil).Record(ev))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimRight(string(data), "\n"), "\n"), 2)
}

func TestMemoryRecorder(t *testing.T) {
	r := NewMemoryRecorder()
	for _, ev := range testEvents() {
		require.NoError(t, r.Record(ev))
	}
	assert.Len(t, r.Events(), 3)

	r.Reset()
	assert.Empty(t, r.Events())
}
