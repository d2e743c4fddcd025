package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a job. IDs are UUID strings; the zero value is the empty
// string and means "not assigned yet".
type ID string

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates s as a UUID and returns it in canonical form.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}
	return ID(u.String()), nil
}

// Validate reports whether the ID holds a well-formed UUID.
func (id ID) Validate() error {
	_, err := ParseID(string(id))
	return err
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is unassigned.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON renders an unassigned ID as null rather than "".
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts null and the empty string as the zero ID and
// validates everything else.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal ID: %w", err)
	}

	if s == "" {
		*id = ""
		return nil
	}

	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
