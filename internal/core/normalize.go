package core

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// NormalizeJSON interprets a cell that may hold a JSON object.
//
//   - null markers yield (nil, false)
//   - a map is returned unchanged
//   - text is parsed as strict JSON; an object is returned, JSON null yields
//     (nil, false), and anything else emits a warning and yields (nil, false)
//   - any other type emits a warning naming the type and yields (nil, false)
//
// The only side effect is the warning sent to d, which may be nil.
func NormalizeJSON(value any, d Diagnostics) (map[string]any, bool) {
	if IsNull(value) {
		return nil, false
	}

	var text string
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return m, true
	case string:
		text = v
	case []byte:
		text = string(v)
	case json.RawMessage:
		text = string(v)
	case pgtype.Text:
		text = v.String
	default:
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindInvalidJSON,
			Message:  "unexpected type for JSON field",
			Detail:   fmt.Sprintf("%T", value),
		})
		return nil, false
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindInvalidJSON,
			Message:  "invalid JSON encountered",
			Detail:   truncateDetail(text),
		})
		return nil, false
	}

	switch p := parsed.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return p, true
	default:
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindInvalidJSON,
			Message:  "JSON field is not an object",
			Detail:   truncateDetail(text),
		})
		return nil, false
	}
}

// flattenJSON copies m into out, joining nested object keys with ".".
// Empty nested objects are kept as values rather than dropped.
func flattenJSON(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenJSON(out, key, nested)
			continue
		}
		out[key] = v
	}
}
