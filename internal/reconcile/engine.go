// Package reconcile mirrors a remote ledger snapshot into the local expense store.
//
// A pass reads the group's synced rows once, computes the minimal set of
// inserts, updates and deletes, and hands them to the store as one atomic
// batch. Passes are idempotent: repeating a pass with the same snapshot
// produces no mutation. Passes for the same group are serialized.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/models"
)

// ErrReconciliation matches every FailureError.
var ErrReconciliation = errors.New("reconciliation failed")

// Store is the persistence the engine needs.
type Store interface {
	// SyncedExpenseRows returns, in one read, the group's rows with a
	// non-empty expense id plus the rows of expenseIDs held by other groups.
	SyncedExpenseRows(ctx context.Context, groupID string, expenseIDs []string) ([]*models.ExpenseRow, error)

	// ApplyExpenseChanges applies the batch atomically.
	ApplyExpenseChanges(ctx context.Context, changes models.ExpenseChanges) error
}

// Converter converts amounts into the reporting currency.
type Converter interface {
	ToReporting(ctx context.Context, amount decimal.Decimal, from string) decimal.Decimal
	Reporting() string
}

// Result counts the row mutations of one pass.
type Result struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Zero reports whether the pass changed nothing.
func (r Result) Zero() bool {
	return r.Inserted == 0 && r.Updated == 0 && r.Deleted == 0
}

// FailureError reports a failed pass. Attempted holds the counts the pass
// tried to apply; nothing was committed.
type FailureError struct {
	GroupID   string
	Attempted Result
	Err       error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("reconciliation of group %s failed (attempted %d inserts, %d updates, %d deletes): %v",
		e.GroupID, e.Attempted.Inserted, e.Attempted.Updated, e.Attempted.Deleted, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrReconciliation) hold for every FailureError.
func (e *FailureError) Is(target error) bool { return target == ErrReconciliation }

// Engine reconciles remote snapshots into a Store.
type Engine struct {
	store     Store
	converter Converter
	locks     *groupLocks
}

// NewEngine returns an Engine.
func NewEngine(store Store, converter Converter) *Engine {
	return &Engine{
		store:     store,
		converter: converter,
		locks:     newGroupLocks(),
	}
}

// FetchFunc returns the full list of a group's active remote expenses.
type FetchFunc func(ctx context.Context) ([]models.RemoteExpense, error)

// Lock blocks until the caller holds the lock of groupID and returns its
// release func. Passes hold the same lock, so writers of a group's synced
// rows that hold it never interleave with a pass.
func (e *Engine) Lock(groupID string) func() {
	return e.locks.lock(groupID)
}

// Sync fetches a snapshot and reconciles it while holding the group lock,
// so a pass never applies a snapshot older than a write that completed
// under the lock before the fetch. Fetch errors are returned unwrapped.
func (e *Engine) Sync(ctx context.Context, groupID string, fetch FetchFunc) (Result, error) {
	unlock := e.locks.lock(groupID)
	defer unlock()

	snapshot, err := fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	return e.reconcile(ctx, groupID, snapshot)
}

// Reconcile mirrors snapshot, the full list of active remote expenses of
// groupID, into the store.
func (e *Engine) Reconcile(ctx context.Context, groupID string, snapshot []models.RemoteExpense) (Result, error) {
	unlock := e.locks.lock(groupID)
	defer unlock()

	return e.reconcile(ctx, groupID, snapshot)
}

// reconcile runs one pass. The caller holds the group lock.
func (e *Engine) reconcile(ctx context.Context, groupID string, snapshot []models.RemoteExpense) (Result, error) {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	candidates, active := Expand(ctx, e.converter, groupID, snapshot)

	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	existing, err := e.store.SyncedExpenseRows(ctx, groupID, ids)
	if err != nil {
		metrics.ReconcilePasses.WithLabelValues("failed").Inc()
		return Result{}, &FailureError{GroupID: groupID, Err: fmt.Errorf("failed to read expense rows: %w", err)}
	}

	changes := Diff(candidates, active, existing)
	changes.GroupID = groupID
	result := Result{
		Inserted: len(changes.Inserts),
		Updated:  len(changes.Updates),
		Deleted:  len(changes.Deletes),
	}

	if !changes.Empty() {
		if err := e.store.ApplyExpenseChanges(ctx, changes); err != nil {
			metrics.ReconcilePasses.WithLabelValues("failed").Inc()
			slog.Error("Reconciliation failed",
				"group_id", groupID,
				"inserts", result.Inserted,
				"updates", result.Updated,
				"deletes", result.Deleted,
				"error", err,
			)
			return Result{}, &FailureError{GroupID: groupID, Attempted: result, Err: err}
		}
	}

	metrics.ReconcilePasses.WithLabelValues("ok").Inc()
	metrics.ReconcileRows.WithLabelValues("insert").Add(float64(result.Inserted))
	metrics.ReconcileRows.WithLabelValues("update").Add(float64(result.Updated))
	metrics.ReconcileRows.WithLabelValues("delete").Add(float64(result.Deleted))

	slog.Info("Reconciliation complete",
		"group_id", groupID,
		"snapshot_size", len(snapshot),
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deleted", result.Deleted,
	)
	return result, nil
}

// Expand turns a snapshot into candidate rows, one per participant with a
// positive owed share, and returns the set of active remote expense ids.
// Settlement entries are dropped from both. Locally owned fields are left
// empty.
func Expand(ctx context.Context, conv Converter, groupID string, snapshot []models.RemoteExpense) ([]*models.ExpenseRow, map[string]struct{}) {
	active := make(map[string]struct{}, len(snapshot))
	seen := make(map[models.ExpenseKey]struct{})
	var candidates []*models.ExpenseRow

	for i := range snapshot {
		exp := &snapshot[i]
		if exp.ID == "" || exp.IsSettlement() || models.IsLocalID(exp.ID) {
			continue
		}
		active[exp.ID] = struct{}{}

		currencyCode := exp.CurrencyCode
		if currencyCode == "" {
			currencyCode = conv.Reporting()
		}
		day := exp.Day()

		for _, share := range exp.Shares {
			if !share.OwedShare.IsPositive() {
				continue
			}
			key := models.ExpenseKey{ExpenseID: exp.ID, ParticipantID: share.ParticipantID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			candidates = append(candidates, &models.ExpenseRow{
				GroupID:        groupID,
				ParticipantID:  share.ParticipantID,
				ExpenseID:      exp.ID,
				Description:    exp.Description,
				Amount:         conv.ToReporting(ctx, share.OwedShare, currencyCode),
				CurrencyCode:   currencyCode,
				OriginalAmount: share.OwedShare,
				Date:           day,
			})
		}
	}
	return candidates, active
}

// Diff partitions candidates against existing rows.
//
// A candidate whose key exists becomes an update, unless its synced fields
// and group already match; a row filed under another group is moved by the
// update. Other candidates are inserts. Existing remote expense ids absent
// from active are deleted; local ids never are.
func Diff(candidates []*models.ExpenseRow, active map[string]struct{}, existing []*models.ExpenseRow) models.ExpenseChanges {
	byKey := make(map[models.ExpenseKey]*models.ExpenseRow, len(existing))
	for _, row := range existing {
		if row.ExpenseID == "" {
			continue
		}
		byKey[row.Key()] = row
	}

	var changes models.ExpenseChanges
	for _, c := range candidates {
		current, ok := byKey[c.Key()]
		if !ok {
			changes.Inserts = append(changes.Inserts, c)
			continue
		}
		if current.GroupID == c.GroupID && current.SameSyncedFields(c) {
			continue
		}
		update := *c
		update.ID = current.ID
		changes.Updates = append(changes.Updates, &update)
	}

	stale := make(map[string]struct{})
	for _, row := range existing {
		id := row.ExpenseID
		if id == "" || models.IsLocalID(id) {
			continue
		}
		if _, ok := active[id]; !ok {
			stale[id] = struct{}{}
		}
	}
	for id := range stale {
		changes.Deletes = append(changes.Deletes, id)
	}
	sort.Strings(changes.Deletes)

	return changes
}
