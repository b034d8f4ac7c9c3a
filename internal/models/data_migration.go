package models

import (
	"encoding/json"
	"time"
)

// DataMigration records that a one-shot data migration completed.
type DataMigration struct {
	Name      string          `json:"name"`
	AppliedAt time.Time       `json:"applied_at"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// NewDataMigration creates a marker for the named migration with the given details.
func NewDataMigration(name string, details any) (*DataMigration, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return &DataMigration{
		Name:      name,
		AppliedAt: time.Now(),
		Details:   raw,
	}, nil
}
