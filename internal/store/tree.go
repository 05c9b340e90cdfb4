package store

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// Normalize converts v into the generic tree representation: map[string]any,
// []any, string, float64, bool or nil. Empty maps collapse to nil.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}

	return prune(out), nil
}

// prune drops empty maps so that a subtree without children does not exist.
func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	for k, child := range m {
		child = prune(child)
		if child == nil {
			delete(m, k)
			continue
		}
		m[k] = child
	}

	if len(m) == 0 {
		return nil
	}

	return m
}

// Lookup returns the value found at segments below root, or nil.
func Lookup(root any, segments []string) any {
	cur := root
	for _, s := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[s]
		if !ok {
			return nil
		}
	}

	return cur
}

// Set returns root with value placed at segments. A nil value removes the
// subtree; parents left empty are removed as well. root may be modified in place.
func Set(root any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}

	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = make(map[string]any)
	}

	child := Set(m[segments[0]], segments[1:], value)
	if child == nil {
		delete(m, segments[0])
	} else {
		m[segments[0]] = child
	}

	if len(m) == 0 {
		return nil
	}

	return m
}

// Merge applies fields below segments, each field key being a relative path.
func Merge(root any, segments []string, fields map[string]any) (any, error) {
	for key, value := range fields {
		rel, err := SplitPath(key)
		if err != nil {
			return root, err
		}

		normalized, err := Normalize(value)
		if err != nil {
			return root, err
		}

		full := make([]string, 0, len(segments)+len(rel))
		full = append(full, segments...)
		full = append(full, rel...)
		root = Set(root, full, normalized)
	}

	return root, nil
}

// Clone deep copies a generic tree.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two generic trees hold the same data.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// CheckFields validates the keys of an Update call.
func CheckFields(fields map[string]any) error {
	for key := range fields {
		if strings.Trim(key, "/") == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidPath)
		}
	}

	return nil
}
