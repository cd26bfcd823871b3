package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

func rawObs(uuid string) inventory.Observation {
	return inventory.Observation{
		UUID: uuid,
		Raw:  json.RawMessage(`{"uuid":"` + uuid + `"}`),
	}
}

func TestAppend_WritesNDJSON(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	err := w.Append("20260823_120000", PurposePaginatedScan, []inventory.Observation{
		rawObs("a"), rawObs("b"),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "20260823_120000", "paginated_scan.txt"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"uuid":"a"}`, lines[0])
	assert.JSONEq(t, `{"uuid":"b"}`, lines[1])
}

func TestAppend_AppendsAcrossCalls(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	require.NoError(t, w.Append("g", PurposePaginatedScan, []inventory.Observation{rawObs("a")}))
	require.NoError(t, w.Append("g", PurposePaginatedScan, []inventory.Observation{rawObs("b")}))

	data, err := os.ReadFile(filepath.Join(root, "g", "paginated_scan.txt"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2, "second append must not truncate")
}

func TestAppend_SeparateFilesPerPurpose(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	require.NoError(t, w.Append("g", PurposePaginatedScan, []inventory.Observation{rawObs("a")}))
	require.NoError(t, w.Append("g", PurposeByVIN, []inventory.Observation{rawObs("b")}))

	_, err := os.Stat(filepath.Join(root, "g", "paginated_scan.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "g", "by_vin.txt"))
	assert.NoError(t, err)
}

func TestAppend_EmptyPageIsNoOp(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	require.NoError(t, w.Append("g", PurposePaginatedScan, nil))

	_, err := os.Stat(filepath.Join(root, "g"))
	assert.True(t, os.IsNotExist(err), "empty append must not create the group dir")
}

func TestAppend_MarshalsRecordsWithoutRaw(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	obs := inventory.Observation{UUID: "a", Attributes: inventory.Attributes{VIN: "V1"}}
	require.NoError(t, w.Append("g", PurposeByVIN, []inventory.Observation{obs}))

	data, err := os.ReadFile(filepath.Join(root, "g", "by_vin.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"V1"`)
}
