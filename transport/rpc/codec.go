package rpc

import "encoding/json"

// jsonCodec is a minimal grpc encoding.Codec so transport/rpc's messages
// can stay plain Go structs instead of requiring protoc-generated,
// protoreflect-satisfying types (see DESIGN.md). It is registered under its
// own name so it never shadows the default protobuf codec used by any other
// gRPC service in the same process.
type jsonCodec struct{}

const codecName = "ratelimitd-json"

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
