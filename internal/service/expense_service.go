package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
	"github.com/mmynk/tripledger/internal/submission"
	"github.com/mmynk/tripledger/pkg/api"
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store     storage.Store
	flow      *submission.Flow
	syncer    *Syncer
	reporting string
}

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates an ExpenseService.
func NewExpenseService(store storage.Store, flow *submission.Flow, syncer *Syncer, reporting string) *ExpenseService {
	return &ExpenseService{store: store, flow: flow, syncer: syncer, reporting: reporting}
}

// actingParticipant returns the caller's participant id: the remote id when
// the account is linked, otherwise the local user id.
func actingParticipant(ctx context.Context) string {
	if remoteID := middleware.GetRemoteID(ctx); remoteID != "" {
		return remoteID
	}
	return middleware.GetUserID(ctx)
}

// requireMember checks that the caller has a trip row for groupID.
func requireMember(ctx context.Context, store storage.TripStore, groupID string) error {
	userID := middleware.GetUserID(ctx)
	trips, err := store.ListTripsByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	for _, t := range trips {
		if t.UserID == userID {
			return nil
		}
	}
	if len(trips) == 0 {
		return fmt.Errorf("trip for group %s: %w", groupID, storage.ErrNotFound)
	}
	return errNotMember
}

// requireExpenseMember checks membership of the group owning expenseID and
// returns the expense's rows. Expenses without local rows are not found.
func (s *ExpenseService) requireExpenseMember(ctx context.Context, expenseID string) ([]*models.ExpenseRow, error) {
	rows, err := s.store.GetExpenseRows(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return rows, requireMember(ctx, s.store, rows[0].GroupID)
}

// SubmitExpense records a new or edited expense.
func (s *ExpenseService) SubmitExpense(ctx context.Context, req *connect.Request[api.SubmitExpenseRequest]) (*connect.Response[api.SubmitExpenseResponse], error) {
	slog.Info("SubmitExpense request received",
		"group_id", req.Msg.GroupID,
		"expense_id", req.Msg.ExpenseID,
		"shares", len(req.Msg.Shares),
	)

	sub, err := submissionFromAPI(req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := requireMember(ctx, s.store, sub.GroupID); err != nil {
		slog.Warn("SubmitExpense rejected", "group_id", sub.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	if sub.ExpenseID != "" {
		rows, err := s.requireExpenseMember(ctx, sub.ExpenseID)
		if err != nil {
			return nil, toConnectError(err)
		}
		if rows[0].GroupID != sub.GroupID {
			return nil, toConnectError(fmt.Errorf("%w: expense %s belongs to another trip",
				submission.ErrInvalidSubmission, sub.ExpenseID))
		}
	}

	out, err := s.flow.Submit(ctx, actingParticipant(ctx), sub)
	if err != nil {
		slog.Error("SubmitExpense failed", "group_id", sub.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense submitted",
		"expense_id", out.ExpenseID,
		"classification", out.Classification.String(),
	)
	return connect.NewResponse(&api.SubmitExpenseResponse{
		ExpenseID:      out.ExpenseID,
		Classification: out.Classification.String(),
		Expenses:       expensesToAPI(out.Rows),
	}), nil
}

// DeleteExpense removes an expense locally and, for shared expenses, remotely.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	rows, err := s.requireExpenseMember(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := s.flow.Delete(ctx, rows[0].GroupID, req.Msg.ExpenseID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ExpenseID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// UpdateExpenseDetails sets location, category and stay dates of an expense.
func (s *ExpenseService) UpdateExpenseDetails(ctx context.Context, req *connect.Request[api.UpdateExpenseDetailsRequest]) (*connect.Response[api.UpdateExpenseDetailsResponse], error) {
	slog.Info("UpdateExpenseDetails request received", "expense_id", req.Msg.ExpenseID)

	details, err := detailsFromAPI(req.Msg.Details)
	if err != nil {
		return nil, toConnectError(err)
	}
	if _, err := s.requireExpenseMember(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError(err)
	}
	if err := s.flow.UpdateDetails(ctx, req.Msg.ExpenseID, details); err != nil {
		slog.Error("UpdateExpenseDetails failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.UpdateExpenseDetailsResponse{}), nil
}

// ListExpenses returns every row of a trip.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	slog.Info("ListExpenses request received", "group_id", req.Msg.GroupID)

	if err := requireMember(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, toConnectError(err)
	}
	rows, err := s.store.ListExpenseRows(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ListExpensesResponse{Expenses: expensesToAPI(rows)}), nil
}

// ListMyExpenses returns the caller's rows of a trip with their total.
func (s *ExpenseService) ListMyExpenses(ctx context.Context, req *connect.Request[api.ListMyExpensesRequest]) (*connect.Response[api.ListMyExpensesResponse], error) {
	participant := actingParticipant(ctx)
	slog.Info("ListMyExpenses request received", "group_id", req.Msg.GroupID, "participant_id", participant)

	if err := requireMember(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, toConnectError(err)
	}
	rows, err := s.store.ListExpenseRowsByParticipant(ctx, req.Msg.GroupID, participant)
	if err != nil {
		slog.Error("ListMyExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return connect.NewResponse(&api.ListMyExpensesResponse{
		Expenses: expensesToAPI(rows),
		Total:    total,
		Currency: s.reporting,
	}), nil
}

// SyncTrip reconciles the trip with the remote ledger.
func (s *ExpenseService) SyncTrip(ctx context.Context, req *connect.Request[api.SyncTripRequest]) (*connect.Response[api.SyncTripResponse], error) {
	slog.Info("SyncTrip request received", "group_id", req.Msg.GroupID)

	if err := requireMember(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, toConnectError(err)
	}
	result, err := s.syncer.Sync(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("SyncTrip failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.SyncTripResponse{
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Deleted:  result.Deleted,
	}), nil
}
