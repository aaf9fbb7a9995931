package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec serialises plain Go structs as JSON for connect handlers and clients.
// It registers under the "json" name so it replaces connect's protojson codec
// and serves application/json and application/connect+json requests.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// HandlerOptions prepends the JSON codec to opts.
func HandlerOptions(opts ...connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}
