package model

import (
	"encoding/json"
)

// EventRecord is the normalized representation of a ledger event for storage.
// Records are appended in sequence order and never rewritten.
type EventRecord struct {
	Seq         uint64          `json:"seq"`
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	EventName   string          `json:"event_name"`
	Actor       string          `json:"actor"`
	Decoded     json.RawMessage `json:"decoded"`
	EmittedAt   string          `json:"emitted_at"`
}

// MarshalJSON ensures EventRecord is encoded with stable field names.
func (er EventRecord) MarshalJSON() ([]byte, error) {
	type Alias EventRecord
	return json.Marshal(Alias(er))
}

// UnmarshalJSON decodes an EventRecord from JSON.
func (er *EventRecord) UnmarshalJSON(data []byte) error {
	type Alias EventRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*er = EventRecord(a)
	return nil
}
