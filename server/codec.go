package server

import (
	"encoding/json"
)

// jsonCodec carries plain Go structs as JSON. The service has no protobuf
// schema, so it replaces connect's protojson codec under the same name.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
