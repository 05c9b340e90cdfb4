package store

import (
	"fmt"
	"strings"
)

// SplitPath splits a slash separated path into its segments.
func SplitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}

	return segments, nil
}

// JoinPath joins segments with slashes.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitGuarded splits path and guard like SplitRecord and checks that both
// belong to the same record.
func SplitGuarded(path, guard string) (string, []string, []string, error) {
	record, rel, err := SplitRecord(path)
	if err != nil {
		return "", nil, nil, err
	}

	guardRecord, guardRel, err := SplitRecord(guard)
	if err != nil {
		return "", nil, nil, err
	}

	if record != guardRecord {
		return "", nil, nil, fmt.Errorf("%w: guard %q is outside record %q", ErrInvalidPath, guard, record)
	}

	return record, rel, guardRel, nil
}

// SplitRecord splits path into its record key (first two segments) and the
// path relative to that record. Backends that keep one document per record use it.
func SplitRecord(path string) (string, []string, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return "", nil, err
	}

	if len(segments) < 2 {
		return "", nil, fmt.Errorf("%w: %q does not address a record", ErrInvalidPath, path)
	}

	return JoinPath(segments[:2]...), segments[2:], nil
}
