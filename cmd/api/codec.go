package main

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec carries the gRPC messages as JSON. Clients select it with the
// "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
