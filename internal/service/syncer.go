package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/reconcile"
)

// Syncer pulls a group's remote snapshot and reconciles it locally.
type Syncer struct {
	remote ledger.Client
	engine *reconcile.Engine
	limit  int
}

// NewSyncer returns a Syncer. remote may be nil, in which case every sync
// fails with FailedPrecondition.
func NewSyncer(remote ledger.Client, engine *reconcile.Engine, limit int) *Syncer {
	if limit <= 0 {
		limit = ledger.DefaultExpenseLimit
	}
	return &Syncer{remote: remote, engine: engine, limit: limit}
}

// Enabled reports whether a remote ledger is configured.
func (s *Syncer) Enabled() bool {
	return s != nil && s.remote != nil
}

// Sync fetches groupID's snapshot and runs one reconciliation pass on it,
// holding the group lock across both.
func (s *Syncer) Sync(ctx context.Context, groupID string) (reconcile.Result, error) {
	if !s.Enabled() {
		return reconcile.Result{}, errNoLedger
	}
	if models.IsLocalID(groupID) {
		return reconcile.Result{}, errLocalGroup
	}

	return s.engine.Sync(ctx, groupID, func(ctx context.Context) ([]models.RemoteExpense, error) {
		snapshot, err := s.remote.FetchGroupExpenses(ctx, groupID, s.limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch remote expenses: %w", err)
		}
		if len(snapshot) >= s.limit {
			slog.Warn("Remote snapshot hit the fetch limit; older expenses may be treated as deleted",
				"group_id", groupID,
				"limit", s.limit,
			)
		}
		return snapshot, nil
	})
}

// Lock takes the reconciliation lock of groupID. Writers of a group's rows
// hold it so their writes never interleave with a fetch and its pass.
func (s *Syncer) Lock(groupID string) func() {
	if s == nil || s.engine == nil {
		return func() {}
	}
	return s.engine.Lock(groupID)
}
