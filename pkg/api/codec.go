package api

import (
	"encoding/json"
	"fmt"
)

// Codec is a Connect codec that encodes plain Go structs as JSON. It
// registers under the name "json", replacing Connect's protobuf JSON codec.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (Codec) Marshal(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", message, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec. An empty body leaves message zero.
func (Codec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", message, err)
	}
	return nil
}
