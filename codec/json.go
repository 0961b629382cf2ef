package codec

import "encoding/json"

// JSON is the standard-library JSON codec.
//
// Settings and queue payloads are map-like structures for which JSON is
// stable and portable. If you need custom encoding (e.g. msgpack), implement
// Codec and set it via the store options.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used by the store.
var Default Codec = JSON{}
