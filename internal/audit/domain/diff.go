package domain

import (
	"fmt"
	"reflect"
	"time"
)

// Field reads one audited value from a snapshot of T.
type Field[T any] struct {
	Name string
	Get  func(T) any
}

// Diff compares two snapshots over fields and returns only the fields whose
// values differ.
func Diff[T any](before, after T, fields ...Field[T]) Changes {
	changes := Changes{}
	for _, f := range fields {
		changes.Set(f.Name, f.Get(before), f.Get(after))
	}
	return changes
}

// Snapshot records every non-empty field of value as set from nothing. It is
// the change map of a created record.
func Snapshot[T any](value T, fields ...Field[T]) Changes {
	changes := Changes{}
	for _, f := range fields {
		after := normalize(f.Get(value))
		if after == nil || after == "" {
			continue
		}
		changes[f.Name] = FieldChange{After: after}
	}
	return changes
}

// Set records a change when before and after differ.
func (c Changes) Set(field string, before, after any) {
	b, a := normalize(before), normalize(after)
	if reflect.DeepEqual(b, a) {
		return
	}
	c[field] = FieldChange{Before: b, After: a}
}

// Compact drops entries whose sides are equal.
func (c Changes) Compact() Changes {
	out := Changes{}
	for field, change := range c {
		out.Set(field, change.Before, change.After)
	}
	return out
}

// DateValue renders a calendar date the way audit entries store it.
func DateValue(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return DateValue(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return DateValue(*val)
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case *int:
		if val == nil {
			return nil
		}
		return int64(*val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return val.String()
	default:
		return v
	}
}
