// Package api contains the hand-written wire layer for the engine's
// Connect services: message types, procedure constants, and handler/client
// bindings. Messages are plain structs carried by a JSON codec, so no
// code generation is involved.
package api

import "encoding/json"

// jsonCodec marshals wire messages with encoding/json. Registering it
// under the name "json" makes it the codec Connect selects for
// application/json requests on both ends.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
