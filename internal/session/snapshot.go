package session

import (
	"encoding/json"
	"fmt"
	"time"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal/engine"
)

// SavedSession describes a stored snapshot without its payload
type SavedSession struct {
	SessionID core.SessionID `json:"session_id"`
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SnapshotVersion is the current snapshot document version
const SnapshotVersion = 1

// GroupSnapshot stores a group by its samples; units are re-formed on
// restore so a changed schema is picked up
type GroupSnapshot struct {
	Name    string          `json:"name"`
	Color   string          `json:"color"`
	Samples []sample.Sample `json:"samples"`
}

// Snapshot is the versioned, structured form of a session's reproducible
// state. It never contains matrix values: restoring goes through a rebuild.
type Snapshot struct {
	Version       int                    `json:"version"`
	SessionID     core.SessionID         `json:"session_id"`
	SavedAt       time.Time              `json:"saved_at"`
	ValueType     matrix.ValueType       `json:"value_type"`
	Groups        []GroupSnapshot        `json:"groups"`
	Probes        []string               `json:"probes,omitempty"`
	Selection     []string               `json:"selection,omitempty"`
	Synthetic     []matrix.SyntheticSpec `json:"synthetic,omitempty"`
	Filters       []engine.NamedFilter   `json:"filters,omitempty"`
	SortColumn    string                 `json:"sort_column,omitempty"`
	SortAscending bool                   `json:"sort_ascending"`
}

// NewSnapshot captures an engine checkpoint
func NewSnapshot(id core.SessionID, cp engine.Checkpoint) Snapshot {
	groups := make([]GroupSnapshot, len(cp.Request.Groups))
	for i, g := range cp.Request.Groups {
		groups[i] = GroupSnapshot{Name: g.Name, Color: g.Color, Samples: g.Samples()}
	}
	return Snapshot{
		Version:       SnapshotVersion,
		SessionID:     id,
		SavedAt:       time.Now().UTC(),
		ValueType:     cp.Request.ValueType,
		Groups:        groups,
		Probes:        cp.Request.Probes,
		Selection:     cp.Selection,
		Synthetic:     cp.Synthetic,
		Filters:       cp.Filters,
		SortColumn:    cp.SortColumn,
		SortAscending: cp.SortAscending,
	}
}

// Checkpoint turns the snapshot back into an engine checkpoint. Group colors
// outside the palette are replaced.
func (s Snapshot) Checkpoint(schema sample.DataSchema) (engine.Checkpoint, error) {
	groups := make([]sample.Group, len(s.Groups))
	for i, gs := range s.Groups {
		g, err := sample.BuildGroup(schema, sample.GroupSpec{Name: gs.Name, Color: gs.Color, Samples: gs.Samples})
		if err != nil {
			return engine.Checkpoint{}, fmt.Errorf("restore group %d: %w", i, err)
		}
		groups[i] = g
	}
	return engine.Checkpoint{
		Request: engine.BuildRequest{
			Groups:    groups,
			Probes:    s.Probes,
			ValueType: s.ValueType,
		},
		Selection:     s.Selection,
		Synthetic:     s.Synthetic,
		Filters:       s.Filters,
		SortColumn:    s.SortColumn,
		SortAscending: s.SortAscending,
	}, nil
}

// EncodeSnapshot serializes a snapshot
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	return json.Marshal(s)
}

// DecodeSnapshot parses a snapshot document, rejecting versions it cannot read
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed snapshot: %v", core.ErrInvalidInput, err)
	}
	if header.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", core.ErrUnsupportedSnapshot, header.Version)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: malformed snapshot: %v", core.ErrInvalidInput, err)
	}
	if _, err := matrix.ParseValueType(string(s.ValueType)); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
