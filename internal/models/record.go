package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// RawRecord is a persisted transaction record of arbitrary shape, stored as JSONB
type RawRecord map[string]any

// Value implements driver.Valuer for RawRecord
func (m RawRecord) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for RawRecord. Numbers are kept as json.Number
// so integer epochs survive without float rounding.
func (m *RawRecord) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(m)
}
