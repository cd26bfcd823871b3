package inventory

import (
	"strconv"
	"time"
)

// Field describes one tracked vehicle attribute. The ordered Fields list
// is the single source of truth for both change comparison and the store
// schema; column names and comparison order must never drift apart.
type Field struct {
	// Name is the snake_case column name in the cars table.
	Name string

	// Volatile marks fields with their own append-only history table.
	// Volatile fields are excluded from change-event comparison: price,
	// mileage and inventory date churn on nearly every sweep and are
	// recorded as time series instead. This exclusion is a product
	// decision; do not widen it.
	Volatile bool

	// Value extracts the field's value for comparison and rendering.
	Value func(a Attributes) any
}

// Fields returns the tracked attribute list in schema order.
func Fields() []Field {
	return []Field{
		{Name: "vin", Value: func(a Attributes) any { return a.VIN }},
		{Name: "price", Volatile: true, Value: func(a Attributes) any { return a.Price }},
		{Name: "make", Value: func(a Attributes) any { return a.Make }},
		{Name: "model", Value: func(a Attributes) any { return a.Model }},
		{Name: "year", Value: func(a Attributes) any { return a.Year }},
		{Name: "mileage", Volatile: true, Value: func(a Attributes) any { return a.Mileage }},
		{Name: "city", Value: func(a Attributes) any { return a.City }},
		{Name: "state", Value: func(a Attributes) any { return a.State }},
		{Name: "postal_code", Value: func(a Attributes) any { return a.PostalCode }},
		{Name: "inventory_date", Volatile: true, Value: func(a Attributes) any { return a.InventoryDate }},
		{Name: "inventory_type", Value: func(a Attributes) any { return a.InventoryType }},
		{Name: "link", Value: func(a Attributes) any { return a.Link }},
	}
}

// Diff compares stored attributes against a new observation and returns
// one ChangeEvent per differing non-volatile field, in schema order.
func Diff(uuid string, old, new Attributes, at time.Time) []ChangeEvent {
	var events []ChangeEvent
	for _, f := range Fields() {
		if f.Volatile {
			continue
		}
		ov, nv := f.Value(old), f.Value(new)
		if ov == nv {
			continue
		}
		events = append(events, ChangeEvent{
			UUID:      uuid,
			Field:     f.Name,
			Old:       FormatValue(ov),
			New:       FormatValue(nv),
			Timestamp: at,
		})
	}
	return events
}

// FormatValue renders a field value for change-log lines.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
