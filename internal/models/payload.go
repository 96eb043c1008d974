package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Payload is an opaque, schema-less key-value document used for the
// loosely-typed gateway fields (payment_details, gateway_response,
// event_data). It round-trips through jsonb columns without imposing a
// concrete structure, which keeps the wire format forward compatible.
type Payload map[string]any

// Value implements driver.Valuer for jsonb columns. A nil payload is stored
// as SQL NULL.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for jsonb columns.
func (p *Payload) Scan(src any) error {
	if src == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}
	return json.Unmarshal(data, p)
}
