package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

// GetVehicle returns the vehicle with the given uuid, or nil if it has
// never been observed.
func (s *Store) GetVehicle(ctx context.Context, uuid string) (*inventory.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uuid, vin, price, make, model, year, mileage,
		       city, state, postal_code, inventory_date, inventory_type, link,
		       first_seen, last_seen, removal_date
		FROM cars WHERE uuid = ?
	`, uuid)

	var v inventory.Vehicle
	var firstSeen, lastSeen string
	var removal sql.NullString
	err := row.Scan(
		&v.UUID, &v.VIN, &v.Price, &v.Make, &v.Model, &v.Year, &v.Mileage,
		&v.City, &v.State, &v.PostalCode, &v.InventoryDate, &v.InventoryType, &v.Link,
		&firstSeen, &lastSeen, &removal,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}

	if v.FirstSeen, err = parseTimestamp(firstSeen); err != nil {
		return nil, fmt.Errorf("get vehicle: first_seen: %w", err)
	}
	if v.LastSeen, err = parseTimestamp(lastSeen); err != nil {
		return nil, fmt.Errorf("get vehicle: last_seen: %w", err)
	}
	if removal.Valid {
		t, err := parseTimestamp(removal.String)
		if err != nil {
			return nil, fmt.Errorf("get vehicle: removal_date: %w", err)
		}
		v.RemovalDate = &t
	}

	return &v, nil
}

// UpsertVehicle inserts or updates a vehicle in a single atomic
// statement. On conflict every attribute is overwritten except
// first_seen, which is set once at insertion and preserved forever.
//
// removal_date is written from the given record: the reconciler passes
// nil, so any prior removal mark is cleared whenever the vehicle is
// observed again.
func (s *Store) UpsertVehicle(ctx context.Context, v *inventory.Vehicle) error {
	var removal any
	if v.RemovalDate != nil {
		removal = formatTimestamp(*v.RemovalDate)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cars
		(uuid, vin, price, make, model, year, mileage, city, state, postal_code,
		 inventory_date, inventory_type, link, first_seen, last_seen, removal_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			vin = excluded.vin,
			price = excluded.price,
			make = excluded.make,
			model = excluded.model,
			year = excluded.year,
			mileage = excluded.mileage,
			city = excluded.city,
			state = excluded.state,
			postal_code = excluded.postal_code,
			inventory_date = excluded.inventory_date,
			inventory_type = excluded.inventory_type,
			link = excluded.link,
			last_seen = excluded.last_seen,
			removal_date = excluded.removal_date
	`,
		v.UUID, v.VIN, v.Price, v.Make, v.Model, v.Year, v.Mileage,
		v.City, v.State, v.PostalCode, v.InventoryDate, v.InventoryType, v.Link,
		formatTimestamp(v.FirstSeen), formatTimestamp(v.LastSeen), removal,
	)
	if err != nil {
		return fmt.Errorf("upsert vehicle: %w", err)
	}

	return nil
}

// AppendPriceObservation appends one row to the price time series.
// Called on every observation, not only when the price changed.
func (s *Store) AppendPriceObservation(ctx context.Context, uuid string, price float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO car_prices (uuid, price, timestamp) VALUES (?, ?, ?)
	`, uuid, price, formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("append price observation: %w", err)
	}
	return nil
}

// AppendMileageObservation appends one row to the mileage time series.
func (s *Store) AppendMileageObservation(ctx context.Context, uuid string, mileage int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO car_mileages (uuid, mileage, timestamp) VALUES (?, ?, ?)
	`, uuid, mileage, formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("append mileage observation: %w", err)
	}
	return nil
}

// AppendInventoryDateObservation appends one row to the inventory-date
// time series.
func (s *Store) AppendInventoryDateObservation(ctx context.Context, uuid, inventoryDate string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO car_inventory_dates (uuid, inventory_date, timestamp) VALUES (?, ?, ?)
	`, uuid, inventoryDate, formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("append inventory date observation: %w", err)
	}
	return nil
}

// ListActiveUUIDs returns the set of uuids with no removal date, i.e.
// every vehicle currently believed to be listed.
func (s *Store) ListActiveUUIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uuid FROM cars WHERE removal_date IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list active uuids: %w", err)
	}
	defer rows.Close()

	active := make(map[string]struct{})
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("list active uuids: scan: %w", err)
		}
		active[uuid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active uuids: %w", err)
	}

	return active, nil
}

// MarkRemoved sets the removal date on a vehicle. The guard on
// removal_date IS NULL makes the operation set-once: a vehicle already
// marked removed keeps its original removal timestamp.
func (s *Store) MarkRemoved(ctx context.Context, uuid string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cars SET removal_date = ? WHERE uuid = ? AND removal_date IS NULL
	`, formatTimestamp(at), uuid)
	if err != nil {
		return fmt.Errorf("mark removed: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.Format(inventory.TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(inventory.TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
