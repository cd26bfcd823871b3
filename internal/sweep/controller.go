package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lotwatch/lotwatch/internal/archive"
	"github.com/lotwatch/lotwatch/internal/inventory"
	"github.com/lotwatch/lotwatch/internal/metrics"
	"github.com/lotwatch/lotwatch/internal/source"
	"github.com/lotwatch/lotwatch/internal/store"
)

// Sweep phases, in order. Used in logs and error messages.
const (
	PhasePaginating          = "paginating"
	PhaseReconcilingRemovals = "reconciling-removals"
)

// Result summarizes one completed sweep. It is returned, not merely
// logged, so callers can assert on it.
type Result struct {
	SweepID string `json:"sweep_id"`

	Pages       int `json:"pages"`
	Observed    int `json:"observed"`
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Removed     int `json:"removed"`
	Reactivated int `json:"reactivated"`

	// Skipped counts malformed observations dropped to preserve sweep
	// progress.
	Skipped int `json:"skipped"`

	// Ambiguous counts removal candidates whose targeted re-check failed;
	// they stay active and are retried on the next sweep.
	Ambiguous int `json:"ambiguous"`

	Changes int `json:"changes"`
}

// ControllerConfig wires a sweep controller.
type ControllerConfig struct {
	Source     source.Source
	Store      *store.Store
	Archive    *archive.Writer
	Reconciler *Reconciler
	Logger     *slog.Logger

	// PageSize is the pagination step; the offset advances by this much
	// per page. Defaults to source.DefaultPageSize.
	PageSize int

	// FetchAttempts bounds retries per page fetch or targeted lookup
	// before the error becomes fatal. Defaults to 3.
	FetchAttempts int

	// RetryBackoff is the initial delay between attempts; it doubles per
	// retry. Defaults to 500ms.
	RetryBackoff time.Duration

	// Now supplies sweep timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Controller drives one full sweep: paginate the source, reconcile every
// observation, then infer removals from the set of active vehicles not
// encountered, re-verifying each candidate by VIN before marking it.
//
// One controller instance per store at a time; concurrent sweeps against
// the same store are an operational error, not guarded here.
type Controller struct {
	cfg ControllerConfig
	log *slog.Logger
	now func() time.Time
}

// NewController creates a sweep controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = source.DefaultPageSize
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{cfg: cfg, log: log, now: cfg.Now}
}

// Run executes one sweep to completion.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	res := Result{SweepID: uuid.Must(uuid.NewV7()).String()}
	groupID := c.now().Format("20060102_150405")
	log := c.log.With("sweep_id", res.SweepID)

	encountered := make(map[string]struct{})

	// Paginating: walk offsets until an empty page.
	for offset := 0; ; offset += c.cfg.PageSize {
		page, err := c.fetchWithRetry(ctx, offset, "")
		if err != nil {
			return res, &SweepError{Code: ErrCodeSourceUnavailable, Phase: PhasePaginating, Err: err}
		}
		log.Info("page fetched", "offset", offset, "page_size", c.cfg.PageSize, "records", len(page))
		if len(page) == 0 {
			break
		}
		res.Pages++

		if err := c.cfg.Archive.Append(groupID, archive.PurposePaginatedScan, page); err != nil {
			return res, fmt.Errorf("sweep %s: archive page at offset %d: %w", PhasePaginating, offset, err)
		}

		for _, obs := range page {
			rr, err := c.cfg.Reconciler.Reconcile(ctx, obs)
			if IsMalformed(err) {
				res.Skipped++
				metrics.ObservationsMalformedTotal.Inc()
				log.Warn("skipping malformed observation", "uuid", obs.UUID, "error", err)
				continue
			}
			if err != nil {
				return res, fmt.Errorf("sweep %s: reconcile %s: %w", PhasePaginating, obs.UUID, err)
			}
			encountered[obs.UUID] = struct{}{}
			c.tally(&res, rr)
		}
	}

	// ReconcilingRemovals: active vehicles not seen this sweep are only
	// candidates. Pagination against a moving sort key can skip a live
	// vehicle, so each candidate gets a targeted VIN lookup before any
	// removal is written.
	active, err := c.cfg.Store.ListActiveUUIDs(ctx)
	if err != nil {
		return res, &SweepError{Code: ErrCodeStoreUnavailable, Phase: PhaseReconcilingRemovals, Err: err}
	}

	var candidates []string
	for id := range active {
		if _, seen := encountered[id]; !seen {
			candidates = append(candidates, id)
		}
	}
	sort.Strings(candidates)
	log.Info("removal candidates computed", "active", len(active), "candidates", len(candidates))

	for _, id := range candidates {
		if err := c.checkCandidate(ctx, log, groupID, id, &res); err != nil {
			return res, err
		}
	}

	log.Info("sweep complete",
		"pages", res.Pages, "observed", res.Observed,
		"inserted", res.Inserted, "updated", res.Updated,
		"removed", res.Removed, "reactivated", res.Reactivated,
		"skipped", res.Skipped, "ambiguous", res.Ambiguous,
		"changes", res.Changes)

	return res, nil
}

// checkCandidate re-verifies one removal candidate via a targeted VIN
// lookup and either reconciles it (still listed) or marks it removed.
func (c *Controller) checkCandidate(ctx context.Context, log *slog.Logger, groupID, id string, res *Result) error {
	vehicle, err := c.cfg.Store.GetVehicle(ctx, id)
	if err != nil {
		return &SweepError{Code: ErrCodeStoreUnavailable, Phase: PhaseReconcilingRemovals, UUID: id, Err: err}
	}
	if vehicle == nil {
		// Listed active moments ago; racing writers are outside the
		// operational model, so treat this as a store fault.
		return &SweepError{Code: ErrCodeStoreUnavailable, Phase: PhaseReconcilingRemovals, UUID: id,
			Err: fmt.Errorf("active vehicle disappeared from store")}
	}

	log.Info("re-checking removal candidate", "uuid", id, "vin", vehicle.VIN)
	metrics.RemovalChecksTotal.Inc()

	page, err := c.fetchWithRetry(ctx, 0, vehicle.VIN)
	if err != nil {
		// A failed re-check proves nothing about the listing. Leave the
		// vehicle active; the next sweep retries.
		res.Ambiguous++
		log.Warn("targeted re-check failed, leaving vehicle active", "uuid", id, "error", err)
		return nil
	}

	if err := c.cfg.Archive.Append(groupID, archive.PurposeByVIN, page); err != nil {
		return fmt.Errorf("sweep %s: archive targeted lookup for %s: %w", PhaseReconcilingRemovals, id, err)
	}

	var match *inventory.Observation
	for i := range page {
		if page[i].UUID == id {
			match = &page[i]
			break
		}
	}

	if match == nil {
		if err := c.cfg.Store.MarkRemoved(ctx, id, c.now()); err != nil {
			return &SweepError{Code: ErrCodeStoreUnavailable, Phase: PhaseReconcilingRemovals, UUID: id, Err: err}
		}
		res.Removed++
		metrics.VehiclesRemovedTotal.Inc()
		log.Info("vehicle removed from inventory", "uuid", id, "vin", vehicle.VIN)
		return nil
	}

	// Transient omission from the full sweep; reconcile normally.
	rr, err := c.cfg.Reconciler.Reconcile(ctx, *match)
	if IsMalformed(err) {
		// The record exists but is unusable; that is not evidence of
		// removal either.
		res.Skipped++
		res.Ambiguous++
		metrics.ObservationsMalformedTotal.Inc()
		log.Warn("targeted re-check returned malformed record", "uuid", id, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sweep %s: reconcile %s: %w", PhaseReconcilingRemovals, id, err)
	}
	c.tally(res, rr)
	return nil
}

// tally folds one reconciliation into the sweep result and metrics.
func (c *Controller) tally(res *Result, rr ReconcileResult) {
	res.Observed++
	metrics.ObservationsTotal.Inc()
	switch rr.Outcome {
	case OutcomeInserted:
		res.Inserted++
		metrics.VehiclesInsertedTotal.Inc()
	case OutcomeUpdated:
		res.Updated++
	}
	if rr.Reactivated {
		res.Reactivated++
		metrics.VehiclesReactivatedTotal.Inc()
	}
	res.Changes += len(rr.Changes)
	if n := len(rr.Changes); n > 0 {
		metrics.ChangeEventsTotal.Add(float64(n))
	}
}

// fetchWithRetry wraps Source.FetchPage with bounded retry and
// exponential backoff. Context cancellation aborts between attempts.
func (c *Controller) fetchWithRetry(ctx context.Context, offset int, search string) ([]inventory.Observation, error) {
	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.FetchAttempts; attempt++ {
		start := time.Now()
		page, err := c.cfg.Source.FetchPage(ctx, offset, search)
		if err == nil {
			metrics.PagesFetchedTotal.Inc()
			metrics.PageFetchDuration.Observe(time.Since(start).Seconds())
			return page, nil
		}
		lastErr = err
		if attempt == c.cfg.FetchAttempts {
			break
		}
		metrics.FetchRetriesTotal.Inc()
		c.log.Warn("fetch failed, retrying", "offset", offset, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.cfg.FetchAttempts, lastErr)
}
