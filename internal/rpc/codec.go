// Package rpc defines the wire contract of the remote record service: the
// request and response messages, a JSON codec for them, the service
// descriptor used to register a server, and a typed client.
//
// Calls are made with the "json" content subtype, so the payload travels as
// application/grpc+json and no generated protobuf code is involved.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of every call.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
