// Package inventory defines the domain types shared across the tracker:
// vehicle observations as returned by the dealership API, the persisted
// vehicle record, and field-level change events.
package inventory

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the wall-clock rendering used in the store and in
// change-log lines.
const TimestampLayout = "2006-01-02 15:04:05"

// Attributes are the tracked per-observation vehicle attributes. The same
// set is carried by observations (fresh from the API) and by the stored
// vehicle record.
type Attributes struct {
	VIN           string
	Price         float64
	Make          string
	Model         string
	Year          int
	Mileage       int
	City          string
	State         string
	PostalCode    string
	InventoryDate string
	InventoryType string
	Link          string
}

// Vehicle is the current-state record persisted in the store.
//
// UUID is the stable listing identifier and primary key. It is distinct
// from the VIN: a VIN can recur across re-listings, a UUID cannot.
type Vehicle struct {
	UUID string
	Attributes

	// FirstSeen is set at first insertion and never overwritten.
	FirstSeen time.Time
	// LastSeen advances to the sweep time on every observation.
	LastSeen time.Time
	// RemovalDate is nil while the vehicle is believed active. It is set
	// when a full sweep plus a targeted re-check both miss the vehicle,
	// and cleared again if the vehicle reappears.
	RemovalDate *time.Time
}

// Active reports whether the vehicle is believed to still be listed.
func (v *Vehicle) Active() bool { return v.RemovalDate == nil }

// Observation is one vehicle record as returned by the inventory source
// at a point in time.
type Observation struct {
	UUID string
	Attributes

	// Raw is the merged source record exactly as received, kept for
	// archiving. Never inspected by the reconciler.
	Raw json.RawMessage

	// Missing lists required source fields absent from the raw record.
	// A non-empty Missing makes the observation malformed; the
	// reconciler refuses it and the sweep controller skips it.
	Missing []string
}

// ChangeEvent records one tracked field differing between the stored
// vehicle and a new observation. Volatile fields (price, mileage,
// inventory date) never produce change events; they have their own
// history tables.
type ChangeEvent struct {
	UUID      string
	Field     string
	Old       string
	New       string
	Timestamp time.Time
}
