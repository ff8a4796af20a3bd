package objectstore

import (
	"time"
)

// Store-assigned fields present on every stored bag.
const (
	// FieldID is the domain id assigned by the store on create.
	FieldID = "id"
	// FieldSelf is the store-internal resource URL (distinct from the
	// domain id; some stored relations reference one, some the other).
	FieldSelf = "@id"
	// FieldVersion is the entity version used for optimistic locking,
	// when the store reports one.
	FieldVersion = "@version"
)

// PropertyBag is an untyped stored entity: a map from property name to
// dynamic value, exactly as the remote store returns it. The
// synchronization core never assumes a fixed schema beyond the fields
// it touches.
type PropertyBag map[string]any

// Clone returns a shallow copy with reference-array values copied one
// level deep, so a caller can mutate lists without aliasing the
// original bag.
func (b PropertyBag) Clone() PropertyBag {
	if b == nil {
		return nil
	}
	out := make(PropertyBag, len(b))
	for k, v := range b {
		if list, ok := v.([]any); ok {
			copied := make([]any, len(list))
			copy(copied, list)
			out[k] = copied
			continue
		}
		if list, ok := v.([]string); ok {
			copied := make([]string, len(list))
			copy(copied, list)
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

// GetString returns the property as a string. Absent, nil or non-string
// values yield ("", false).
func (b PropertyBag) GetString(key string) (string, bool) {
	v, ok := b[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringList returns the property as a list of strings, treating an
// absent or nil property as empty. JSON decoding yields []any; values
// that are not strings are skipped.
func (b PropertyBag) StringList(key string) []string {
	v, ok := b[key]
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// GetTime parses the property as a timestamp. The store writes RFC 3339
// but older records carry date-only values.
func (b PropertyBag) GetTime(key string) (time.Time, bool) {
	s, ok := b.GetString(key)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SelfURL returns the store-internal resource URL, when present.
func (b PropertyBag) SelfURL() (string, bool) {
	return b.GetString(FieldSelf)
}

// ID returns the domain id, when present.
func (b PropertyBag) ID() (string, bool) {
	return b.GetString(FieldID)
}

// ContainsRef reports whether the named reference array holds the
// given canonical URL.
func (b PropertyBag) ContainsRef(key, canonical string) bool {
	for _, v := range b.StringList(key) {
		if v == canonical {
			return true
		}
	}
	return false
}
