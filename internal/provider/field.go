package provider

import "strings"

// Field is an ordered list of dotted paths for one canonical value. Paths are
// tried in order and the first present, non-empty value wins, so every
// accepted upstream spelling lives in one auditable place:
//
//	var firstName = provider.F("firstName", "first_name", "name.first")
type Field []string

// F builds a Field from paths.
func F(paths ...string) Field {
	return Field(paths)
}

// Lookup returns the first present value along the chain.
func (f Field) Lookup(item map[string]any) (any, bool) {
	for _, path := range f {
		v, ok := resolve(item, path)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String returns the first value rendered as a trimmed string, or "".
func (f Field) String(item map[string]any) string {
	v, ok := f.Lookup(item)
	if !ok {
		return ""
	}
	return ToString(v)
}

// StringPtr is String with nil for absent.
func (f Field) StringPtr(item map[string]any) *string {
	s := f.String(item)
	if s == "" {
		return nil
	}
	return &s
}

// Float returns the first numeric value along the chain. Unparseable values
// do not stop the search.
func (f Field) Float(item map[string]any) (float64, bool) {
	for _, path := range f {
		v, ok := resolve(item, path)
		if !ok {
			continue
		}
		if n, ok := ExtractValue(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Int is Float truncated to an int.
func (f Field) Int(item map[string]any) (int, bool) {
	n, ok := f.Float(item)
	return int(n), ok
}

// IntPtr is Int with nil for absent.
func (f Field) IntPtr(item map[string]any) *int {
	n, ok := f.Int(item)
	if !ok {
		return nil
	}
	return &n
}

// Bool accepts JSON booleans and the strings "true"/"yes"/"1".
func (f Field) Bool(item map[string]any) (bool, bool) {
	v, ok := f.Lookup(item)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	case float64:
		return b != 0, true
	}
	return false, false
}

// Map returns the first value that is a JSON object.
func (f Field) Map(item map[string]any) map[string]any {
	for _, path := range f {
		if v, ok := resolve(item, path); ok {
			if m, isMap := v.(map[string]any); isMap {
				return m
			}
		}
	}
	return nil
}

// List returns the first value that is a JSON array.
func (f Field) List(item map[string]any) []any {
	for _, path := range f {
		if v, ok := resolve(item, path); ok {
			if l, isList := v.([]any); isList {
				return l
			}
		}
	}
	return nil
}

// Items is List filtered to object elements.
func (f Field) Items(item map[string]any) []map[string]any {
	raw := f.List(item)
	out := make([]map[string]any, 0, len(raw))
	for _, el := range raw {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func resolve(item map[string]any, path string) (any, bool) {
	if item == nil {
		return nil, false
	}
	var cur any = item
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
