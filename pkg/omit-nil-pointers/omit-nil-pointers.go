// Package omitnilpointers turns a set of optional fields into a partial update.
package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers returns fields without the nil entries, with every pointer
// replaced by the value it points to. Pointers to pointers are followed.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				break
			}
			v = v.Elem()
		}
		if v.Kind() == reflect.Pointer {
			continue
		}

		omitted[key] = v.Interface()
	}

	return omitted
}
