// Package sweep contains the tracker's decision core: the reconciler,
// which merges one observation into persisted state, and the sweep
// controller, which drives full pagination passes and infers removals.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/lotwatch/lotwatch/internal/changelog"
	"github.com/lotwatch/lotwatch/internal/inventory"
	"github.com/lotwatch/lotwatch/internal/store"
)

// Outcome states what a reconciliation did to the vehicle row.
type Outcome string

const (
	// OutcomeInserted means the uuid had never been observed before.
	OutcomeInserted Outcome = "inserted"

	// OutcomeUpdated means an existing row was overwritten.
	OutcomeUpdated Outcome = "updated"
)

// ReconcileResult reports one reconciliation.
type ReconcileResult struct {
	Outcome Outcome

	// Reactivated is true when the vehicle had a removal date that this
	// observation cleared.
	Reactivated bool

	// Changes holds the change events emitted for non-volatile field
	// differences. Empty on insert and on unchanged updates.
	Changes []inventory.ChangeEvent
}

// Reconciler merges observations into the store and emits change events.
//
// Per reconciliation the order is fixed: detect changes, record events
// durably, then write the store. History rows are appended on every
// observation regardless of whether values changed.
type Reconciler struct {
	store    *store.Store
	recorder changelog.Recorder
	now      func() time.Time
}

// NewReconciler creates a reconciler. now may be nil, defaulting to
// time.Now; tests inject a deterministic clock.
func NewReconciler(st *store.Store, recorder changelog.Recorder, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: st, recorder: recorder, now: now}
}

// Reconcile merges a single observation into the store.
//
// A malformed observation (missing required fields) returns a
// MALFORMED_OBSERVATION error without touching the store; the caller
// decides whether to skip or abort. Store failures return
// STORE_UNAVAILABLE errors.
func (r *Reconciler) Reconcile(ctx context.Context, obs inventory.Observation) (ReconcileResult, error) {
	if len(obs.Missing) > 0 {
		return ReconcileResult{}, MalformedObservationError(obs.UUID, obs.Missing)
	}

	now := r.now()

	existing, err := r.store.GetVehicle(ctx, obs.UUID)
	if err != nil {
		return ReconcileResult{}, &SweepError{Code: ErrCodeStoreUnavailable, UUID: obs.UUID, Err: err}
	}

	var res ReconcileResult
	vehicle := &inventory.Vehicle{
		UUID:       obs.UUID,
		Attributes: obs.Attributes,
		LastSeen:   now,
		// RemovalDate stays nil: an observed vehicle is active, whatever
		// the store believed before.
	}

	if existing == nil {
		vehicle.FirstSeen = now
		res.Outcome = OutcomeInserted
	} else {
		// first_seen is immutable once assigned.
		vehicle.FirstSeen = existing.FirstSeen
		res.Outcome = OutcomeUpdated
		res.Reactivated = existing.RemovalDate != nil

		res.Changes = inventory.Diff(obs.UUID, existing.Attributes, obs.Attributes, now)
		for _, ev := range res.Changes {
			if err := r.recorder.Record(ev); err != nil {
				// The store must not move ahead of the change log.
				return ReconcileResult{}, fmt.Errorf("record change event for %s: %w", obs.UUID, err)
			}
		}
	}

	if err := r.store.UpsertVehicle(ctx, vehicle); err != nil {
		return ReconcileResult{}, &SweepError{Code: ErrCodeStoreUnavailable, UUID: obs.UUID, Err: err}
	}

	// Raw time series, not diffs: appended unconditionally.
	if err := r.store.AppendPriceObservation(ctx, obs.UUID, obs.Price, now); err != nil {
		return ReconcileResult{}, &SweepError{Code: ErrCodeStoreUnavailable, UUID: obs.UUID, Err: err}
	}
	if err := r.store.AppendMileageObservation(ctx, obs.UUID, obs.Mileage, now); err != nil {
		return ReconcileResult{}, &SweepError{Code: ErrCodeStoreUnavailable, UUID: obs.UUID, Err: err}
	}
	if err := r.store.AppendInventoryDateObservation(ctx, obs.UUID, obs.InventoryDate, now); err != nil {
		return ReconcileResult{}, &SweepError{Code: ErrCodeStoreUnavailable, UUID: obs.UUID, Err: err}
	}

	return res, nil
}
