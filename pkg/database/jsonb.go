package database

import (
	"database/sql/driver"
	"fmt"
)

// JSONB holds a raw JSON column. SQL NULL scans to nil and nil is written
// back as NULL; in API payloads nil encodes as null.
type JSONB []byte

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("jsonb: cannot scan %T", src)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps the literal bytes, including a literal null, so patch
// payloads can tell an absent field from an explicit null.
func (j *JSONB) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}

// IsNull reports whether j is unset or the JSON literal null.
func (j JSONB) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}
