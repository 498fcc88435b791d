package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotFilename is the file each backend writes inside a dump
// directory. Both backends share the name; the JSON element shape tells
// them apart on load.
const SnapshotFilename = "memories.json"

// lexical snapshots hold plain items; semantic snapshots hold the vector
// store points so a reload never re-embeds.
type vectorRecord struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

func snapshotPath(dir string) string {
	return filepath.Join(dir, SnapshotFilename)
}

func writeSnapshot(dir string, records interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(snapshotPath(dir), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// readSnapshot returns the raw snapshot bytes, or found=false when the
// file does not exist.
func readSnapshot(dir string) (data []byte, found bool, err error) {
	data, err = os.ReadFile(snapshotPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return data, true, nil
}

// probeSnapshot splits the snapshot into raw elements and classifies the
// format from the first element's keys.
func probeSnapshot(data []byte) (elements []json.RawMessage, semantic bool, err error) {
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if len(elements) == 0 {
		return elements, false, nil
	}
	var head map[string]json.RawMessage
	if err := json.Unmarshal(elements[0], &head); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	_, hasVector := head["vector"]
	return elements, hasVector, nil
}

func decodeItemSnapshot(data []byte) ([]*Item, error) {
	elements, semantic, err := probeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if semantic {
		return nil, fmt.Errorf("%w: snapshot contains vector records", ErrSnapshotFormat)
	}
	items := make([]*Item, 0, len(elements))
	for _, raw := range elements {
		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
		}
		items = append(items, &item)
	}
	return items, nil
}

func decodeVectorSnapshot(data []byte) ([]vectorRecord, error) {
	elements, semantic, err := probeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 && !semantic {
		return nil, fmt.Errorf("%w: snapshot contains plain items without vectors", ErrSnapshotFormat)
	}
	records := make([]vectorRecord, 0, len(elements))
	for _, raw := range elements {
		var rec vectorRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
