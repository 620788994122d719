package tool

import "encoding/json"

// EncodeValue renders a handler value as JSON. Raw messages and byte
// slices that already hold JSON pass through unchanged.
func EncodeValue(v any) (json.RawMessage, error) {
	switch v := v.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		if json.Valid(v) {
			return v, nil
		}
	}
	return json.Marshal(v)
}
