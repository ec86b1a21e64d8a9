package structs

import "encoding/json"

// Optional distinguishes a JSON field that is absent from one that is
// explicitly null and from one that carries a value. Several gateway fields
// (guild owner ids, thread parent ids) make all three states meaningful, so
// they must not be collapsed into a single pointer.
//
// The zero value is Missing. Fields left untouched by UnmarshalJSON stay
// Missing; a JSON null becomes Null.
type Optional[T any] struct {
	value   T
	null    bool
	present bool
}

// Some wraps a concrete value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Null is a present-but-null field.
func Null[T any]() Optional[T] {
	return Optional[T]{null: true, present: true}
}

// IsMissing reports that the field was absent from the document.
func (o Optional[T]) IsMissing() bool { return !o.present }

// IsNull reports that the field was present and null.
func (o Optional[T]) IsNull() bool { return o.present && o.null }

// Value returns the wrapped value and whether one is set.
func (o Optional[T]) Value() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Or returns the wrapped value, or fallback when the field is missing or
// null.
func (o Optional[T]) Or(fallback T) T {
	if v, ok := o.Value(); ok {
		return v
	}
	return fallback
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if string(data) == "null" {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
