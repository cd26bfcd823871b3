// Package archive appends raw API records to durable newline-delimited
// JSON files, grouped by sweep and purpose. Files are append-only; the
// archive is never read or truncated by the tracker itself.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

// Purposes distinguish full-scan pages from targeted re-check results.
const (
	PurposePaginatedScan = "paginated_scan"
	PurposeByVIN         = "by_vin"
)

// Writer appends observation records under root/<groupID>/<purpose>.txt.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at the given directory. The
// directory itself is created lazily on first append.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Append writes one JSON object per record to the group's purpose file,
// creating directories as needed. The file is only ever opened in append
// mode.
func (w *Writer) Append(groupID, purpose string, records []inventory.Observation) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Join(w.root, groupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("archive: create group dir: %w", err)
	}

	path := filepath.Join(dir, purpose+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for _, rec := range records {
		line := rec.Raw
		if line == nil {
			// Scripted test sources may not carry a raw payload.
			b, err := json.Marshal(rec.Attributes)
			if err != nil {
				return fmt.Errorf("archive: marshal record: %w", err)
			}
			line = b
		}
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("archive: write: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("archive: write: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("archive: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("archive: sync: %w", err)
	}

	return nil
}
