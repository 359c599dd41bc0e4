package cart

import (
	"encoding/json"
	"fmt"
	"time"
)

const snapshotSchemaVersion = 1

// Snapshot is the serialized form kept in the local cart cache
type Snapshot struct {
	SchemaVersion int        `json:"schema_version"`
	Owner         string     `json:"owner"`
	Lines         []CartLine `json:"lines"`
	SavedAt       time.Time  `json:"saved_at"`
}

// EncodeSnapshot serializes the cart lines for owner
func EncodeSnapshot(owner Owner, lines []CartLine, savedAt time.Time) ([]byte, error) {
	if lines == nil {
		lines = []CartLine{}
	}
	return json.Marshal(Snapshot{
		SchemaVersion: snapshotSchemaVersion,
		Owner:         owner.String(),
		Lines:         lines,
		SavedAt:       savedAt.UTC(),
	})
}

// DecodeSnapshot parses a cached snapshot. Lines failing validation are dropped.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode cart snapshot: %w", err)
	}
	if s.SchemaVersion > snapshotSchemaVersion {
		return Snapshot{}, fmt.Errorf("unsupported cart snapshot version %d", s.SchemaVersion)
	}
	valid := s.Lines[:0]
	for _, l := range s.Lines {
		if l.Validate() == nil {
			valid = append(valid, l)
		}
	}
	s.Lines = valid
	return s, nil
}
