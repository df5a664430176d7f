// Package codec implements the store-safe wire form for records that carry
// raw byte buffers (key material, pre-keys). Byte-valued fields are replaced,
// at any depth, by a tagged wrapper {"type":"Buffer","data":"<base64>"} so
// they survive a schemaless JSON table; decoding restores them and also
// accepts the wrapper shapes written by earlier codec versions.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const bufferTag = "Buffer"

// Buffer is a byte slice that marshals to the tagged wrapper form. It is the
// field type for byte-valued fields in typed records.
type Buffer []byte

func (b Buffer) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type": bufferTag,
		"data": base64.StdEncoding.EncodeToString(b),
	})
}

// UnmarshalJSON accepts the current wrapper plus the legacy shapes
// ({"buffer":true,...}, base64 string or byte-array payloads) so historical
// rows stay readable.
func (b *Buffer) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	raw, ok := bufferValue(v)
	if !ok {
		return fmt.Errorf("codec: value is not a buffer wrapper")
	}
	*b = raw
	return nil
}

// Encode returns a copy of v with every byte slice, at any depth, replaced by
// the tagged wrapper. Maps and slices are walked recursively; everything else
// passes through unchanged, including maps that carry a stray "type" tag
// without byte-shaped data.
func Encode(v any) any {
	switch t := v.(type) {
	case []byte:
		return wrap(t)
	case Buffer:
		return wrap(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Encode(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Encode(val)
		}
		return out
	default:
		return v
	}
}

// Decode is the inverse of Encode: wrapper-shaped maps become raw byte
// slices, everything else is walked or passed through.
func Decode(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if raw, ok := bufferValue(t); ok {
			return []byte(raw)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Decode(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Decode(val)
		}
		return out
	default:
		return v
	}
}

// Marshal encodes v into store-safe JSON. Schemaless map records are walked
// by Encode first; typed records marshal their Buffer fields directly.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(Encode(v))
}

// Unmarshal parses store JSON into v. For *map[string]any and *any targets
// the wrapper shapes are decoded back into raw byte slices; typed struct
// targets decode through Buffer's UnmarshalJSON.
func Unmarshal(data []byte, v any) error {
	switch dst := v.(type) {
	case *map[string]any:
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		m, ok := Decode(raw).(map[string]any)
		if !ok {
			return fmt.Errorf("codec: record is not an object")
		}
		*dst = m
		return nil
	case *any:
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*dst = Decode(raw)
		return nil
	default:
		return json.Unmarshal(data, v)
	}
}

func wrap(b []byte) map[string]any {
	return map[string]any{
		"type": bufferTag,
		"data": base64.StdEncoding.EncodeToString(b),
	}
}

// bufferValue reports whether v has a wrapper shape and returns the bytes.
// Shapes accepted, matching every codec version that has written these
// tables: {"type":"Buffer","data":"<base64>"} and the legacy
// {"buffer":true} form with the payload under "data" or "value" as either a
// base64 string or an array of byte values. A tagged map whose payload has
// no byte-iterable shape is not a buffer.
func bufferValue(v any) (Buffer, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	tag, _ := m["type"].(string)
	legacy, _ := m["buffer"].(bool)
	if tag != bufferTag && !legacy {
		return nil, false
	}
	val, ok := m["data"]
	if !ok || val == nil {
		val = m["value"]
	}
	switch t := val.(type) {
	case string:
		raw, err := base64.StdEncoding.DecodeString(t)
		if err != nil {
			return nil, false
		}
		return raw, true
	case []any:
		raw := make([]byte, len(t))
		for i, e := range t {
			n, ok := e.(float64)
			if !ok {
				return nil, false
			}
			raw[i] = byte(int64(n))
		}
		return raw, true
	case nil:
		return Buffer{}, true
	default:
		return nil, false
	}
}
