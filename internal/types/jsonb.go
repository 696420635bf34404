package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions. These ensure RawPayload implements both
// sql.Scanner and driver.Valuer, catching method signature drift at compile
// time rather than at runtime.
var (
	_ sql.Scanner   = (*RawPayload)(nil)
	_ driver.Valuer = RawPayload(nil)
	_ json.Marshaler = RawPayload(nil)
)

// RawPayload holds a webhook payload exactly as received, for JSONB storage.
// The bytes are never re-encoded: the audit log stores the provider's payload
// verbatim.
type RawPayload []byte

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (p *RawPayload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*p = append(RawPayload(nil), v...)
	case string:
		*p = RawPayload(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (p RawPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return []byte(p), nil
}

// MarshalJSON emits the stored bytes as-is so that API responses and logs see
// the original payload, not a re-encoded copy.
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON captures the raw bytes without decoding them.
func (p *RawPayload) UnmarshalJSON(data []byte) error {
	*p = append(RawPayload(nil), data...)
	return nil
}
