// Package discovery fetches newly created tokens from the discovery API.
package discovery

import "encoding/json"

// Entity is one discovery record. Only Symbol and TokenAddress drive behavior;
// Raw carries the original object for formatting and audit.
type Entity struct {
	Symbol       string          `json:"symbol"`
	TokenAddress string          `json:"token_address"`
	Name         string          `json:"name,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// ID is the tracked identifier of the entity.
func (e Entity) ID() string { return e.TokenAddress }
