package store

import (
	"github.com/goccy/go-json"
)

// Snapshot is the value of a path at a point in time. A nil Value means the
// path does not exist.
type Snapshot struct {
	Path  string
	Value any
}

func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Child returns the snapshot of a direct or nested child.
func (s Snapshot) Child(path string) Snapshot {
	segments, err := SplitPath(path)
	if err != nil {
		return Snapshot{Path: s.Path}
	}

	return Snapshot{
		Path:  JoinPath(s.Path, path),
		Value: Lookup(s.Value, segments),
	}
}

// Decode converts the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if s.Value == nil {
		return nil
	}

	b, err := json.Marshal(s.Value)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, v)
}
