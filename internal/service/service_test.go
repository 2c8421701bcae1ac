package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/reconcile"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
	"github.com/mmynk/tripledger/internal/submission"
	"github.com/mmynk/tripledger/pkg/api"
)

// fakeLedger is an in-memory remote ledger implementing ledger.Client and
// ledger.Directory.
type fakeLedger struct {
	mu      sync.Mutex
	next    int
	groups  map[string][]models.RemoteExpense
	members map[string][]models.RemoteUser
	fail    error
	me      models.RemoteUser
	onFetch func()

	currencies []models.RemoteCurrency
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		next:    500,
		groups:  make(map[string][]models.RemoteExpense),
		members: make(map[string][]models.RemoteUser),
	}
}

func (l *fakeLedger) FetchGroupExpenses(ctx context.Context, groupID string, limit int) ([]models.RemoteExpense, error) {
	l.mu.Lock()
	if l.fail != nil {
		l.mu.Unlock()
		return nil, l.fail
	}
	snapshot := append([]models.RemoteExpense(nil), l.groups[groupID]...)
	hook := l.onFetch
	l.onFetch = nil
	l.mu.Unlock()

	// The snapshot is already taken; hook holds the response in flight.
	if hook != nil {
		hook()
	}
	return snapshot, nil
}

func (l *fakeLedger) store(id string, p ledger.ExpensePayload) *models.RemoteExpense {
	exp := models.RemoteExpense{
		ID:           id,
		GroupID:      p.GroupID,
		Description:  p.Description,
		CurrencyCode: p.CurrencyCode,
		Cost:         p.Cost,
		Date:         p.Date,
		Shares:       p.Shares,
	}
	list := l.groups[p.GroupID]
	for i := range list {
		if list[i].ID == id {
			list[i] = exp
			return &exp
		}
	}
	l.groups[p.GroupID] = append(list, exp)
	return &exp
}

func (l *fakeLedger) CreateExpense(ctx context.Context, p ledger.ExpensePayload) (*models.RemoteExpense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.next++
	return l.store(strconv.Itoa(l.next), p), nil
}

func (l *fakeLedger) UpdateExpense(ctx context.Context, id string, p ledger.ExpensePayload) (*models.RemoteExpense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	return l.store(id, p), nil
}

func (l *fakeLedger) DeleteExpense(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	for g, list := range l.groups {
		for i := range list {
			if list[i].ID == id {
				l.groups[g] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return &ledger.Error{Op: "delete_expense", StatusCode: http.StatusNotFound}
}

func (l *fakeLedger) CurrentUser(ctx context.Context) (*models.RemoteUser, error) {
	me := l.me
	return &me, nil
}

func (l *fakeLedger) GetGroup(ctx context.Context, groupID string) (*models.RemoteGroup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &models.RemoteGroup{ID: groupID, Members: l.members[groupID]}, nil
}

func (l *fakeLedger) ListGroups(ctx context.Context) ([]models.RemoteGroup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	ids := make([]string, 0, len(l.members))
	for id := range l.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	groups := make([]models.RemoteGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, models.RemoteGroup{ID: id, Name: "Group " + id, Members: l.members[id]})
	}
	return groups, nil
}

func (l *fakeLedger) ListCurrencies(ctx context.Context) ([]models.RemoteCurrency, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	return l.currencies, nil
}

func (l *fakeLedger) setFail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// testAuthInterceptor returns a Connect interceptor that authenticates every
// request as the given user.
func testAuthInterceptor(user *models.User) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			ctx = middleware.WithClaims(ctx, &auth.Claims{UserID: user.ID, RemoteID: user.RemoteID, Email: user.Email})
			return next(ctx, req)
		}
	}
}

type testEnv struct {
	remote   *fakeLedger
	store    *sqlite.SQLiteStore
	user     *models.User
	expenses *api.ExpenseServiceClient
	trips    *api.TripServiceClient
	rates    *api.CurrencyServiceClient
	auth     *api.AuthServiceClient
}

// setupTestServer serves every service over httptest with a temp SQLite
// database, acting as remote user "1".
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	user := &models.User{RemoteID: "1", Name: "Asha", Email: "asha@example.com"}
	if err := store.UpsertUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	remote := newFakeLedger()
	remote.me = models.RemoteUser{ID: "7", Name: "Linked", Email: "linked@example.com"}

	provider := currency.ProviderFunc(func(ctx context.Context, from, to string) (decimal.Decimal, error) {
		if from == "USD" && to == "INR" {
			return dec("83"), nil
		}
		return decimal.Zero, currency.ErrRateUnavailable
	})
	normalizer := currency.NewNormalizer(provider, currency.NewRateCache(), "INR")
	engine := reconcile.NewEngine(store, normalizer)
	syncer := NewSyncer(remote, engine, 0)
	flow := submission.NewFlow(store, remote, normalizer, submission.WithGroupLock(engine))

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authSvc := NewAuthService(
		auth.NewPasswordAuthenticator(store),
		auth.NewRemoteAuthenticator(store, func(token string) ledger.Directory { return remote }),
		store, jwtManager, slog.Default(),
	)

	authed := connect.WithInterceptors(testAuthInterceptor(user))
	mux := http.NewServeMux()
	mux.Handle(api.NewExpenseServiceHandler(NewExpenseService(store, flow, syncer, "INR"), authed))
	mux.Handle(api.NewTripServiceHandler(NewTripService(store, remote, syncer, "INR"), authed))
	mux.Handle(api.NewCurrencyServiceHandler(NewCurrencyService(normalizer, remote)))
	mux.Handle(api.NewAuthServiceHandler(authSvc, connect.WithInterceptors(middleware.OptionalAuth(jwtManager))))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		remote:   remote,
		store:    store,
		user:     user,
		expenses: api.NewExpenseServiceClient(http.DefaultClient, server.URL),
		trips:    api.NewTripServiceClient(http.DefaultClient, server.URL),
		rates:    api.NewCurrencyServiceClient(http.DefaultClient, server.URL),
		auth:     api.NewAuthServiceClient(http.DefaultClient, server.URL),
	}
}

// seedGroup gives group g1 two expenses and a settlement on the remote ledger.
func (e *testEnv) seedGroup() {
	day := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	e.remote.members["g1"] = []models.RemoteUser{{ID: "1", Name: "Asha"}, {ID: "2", Name: "Ben"}}
	e.remote.groups["g1"] = []models.RemoteExpense{
		{ID: "101", GroupID: "g1", Description: "Dinner", CurrencyCode: "USD", Cost: dec("10"), Date: day,
			Shares: []models.Share{{ParticipantID: "1", PaidShare: dec("10"), OwedShare: dec("10")}, {ParticipantID: "2", OwedShare: dec("0")}}},
		{ID: "102", GroupID: "g1", Description: "Taxi", CurrencyCode: "USD", Cost: dec("20"), Date: day,
			Shares: []models.Share{{ParticipantID: "1", PaidShare: dec("20"), OwedShare: dec("0")}, {ParticipantID: "2", OwedShare: dec("20")}}},
		{ID: "103", GroupID: "g1", Description: "Payment", CurrencyCode: "USD", Cost: dec("20"), CreatedAt: day,
			Shares: []models.Share{{ParticipantID: "2", PaidShare: dec("20")}, {ParticipantID: "1", OwedShare: dec("20")}}},
	}
}

func connectCode(err error) connect.Code {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Code()
	}
	return connect.CodeUnknown
}

func TestTripService_CreateTrip(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	ctx := context.Background()

	resp, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{
		GroupID:    "g1",
		Name:       "Goa",
		StartDate:  "2024-03-01",
		Currencies: []string{"inr", "USD"},
	}))
	if err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	trip := resp.Msg.Trip
	if trip.Name != "Goa" || trip.CreatedByName != "Asha" {
		t.Errorf("Unexpected trip: %+v", trip)
	}
	if trip.Currencies[0] != "INR" {
		t.Errorf("Currencies not normalized: %v", trip.Currencies)
	}
	if resp.Msg.Sync == nil || resp.Msg.Sync.Inserted != 2 {
		t.Errorf("Expected initial sync to insert 2 rows, got %+v", resp.Msg.Sync)
	}

	siblings, _ := env.store.ListTripsByGroup(ctx, "g1")
	if len(siblings) != 2 {
		t.Errorf("Expected a trip row per participant, got %d", len(siblings))
	}

	t.Run("duplicate group", func(t *testing.T) {
		_, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Again"}))
		if connectCode(err) != connect.CodeAlreadyExists {
			t.Errorf("Expected AlreadyExists, got %v", err)
		}
	})

	t.Run("invalid fields", func(t *testing.T) {
		_, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{
			Name: "Bad", StartDate: "2024-03-05", EndDate: "2024-03-01",
		}))
		if connectCode(err) != connect.CodeInvalidArgument {
			t.Errorf("Expected InvalidArgument, got %v", err)
		}
	})

	t.Run("local trip without group", func(t *testing.T) {
		resp, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{Name: "Solo"}))
		if err != nil {
			t.Fatalf("CreateTrip failed: %v", err)
		}
		if !models.IsLocalID(resp.Msg.Trip.GroupID) || resp.Msg.Sync != nil {
			t.Errorf("Expected a local trip without sync, got %+v", resp.Msg)
		}

		_, err = env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: resp.Msg.Trip.GroupID}))
		if connectCode(err) != connect.CodeFailedPrecondition {
			t.Errorf("Expected FailedPrecondition for local sync, got %v", err)
		}
	})
}

func TestExpenseService_SyncTrip(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	ctx := context.Background()

	if _, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Goa"})); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	t.Run("second pass is a no-op", func(t *testing.T) {
		resp, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("SyncTrip failed: %v", err)
		}
		if resp.Msg.Inserted != 0 || resp.Msg.Updated != 0 || resp.Msg.Deleted != 0 {
			t.Errorf("Expected no changes, got %+v", resp.Msg)
		}
	})

	t.Run("rows are converted and settlements skipped", func(t *testing.T) {
		resp, err := env.expenses.ListExpenses(ctx, connect.NewRequest(&api.ListExpensesRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(resp.Msg.Expenses) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(resp.Msg.Expenses))
		}
		for _, e := range resp.Msg.Expenses {
			if e.ExpenseID == "103" {
				t.Error("Settlement became an expense row")
			}
			if e.ExpenseID == "102" && (e.ParticipantID != "2" || !e.Amount.Equal(dec("1660"))) {
				t.Errorf("Unexpected row for 102: %+v", e)
			}
		}
	})

	t.Run("local details survive a sync", func(t *testing.T) {
		_, err := env.expenses.UpdateExpenseDetails(ctx, connect.NewRequest(&api.UpdateExpenseDetailsRequest{
			ExpenseID: "101",
			Details:   api.ExpenseDetails{Location: "Paris", Category: "Food"},
		}))
		if err != nil {
			t.Fatalf("UpdateExpenseDetails failed: %v", err)
		}

		env.remote.mu.Lock()
		env.remote.groups["g1"][0].Description = "Dinner by the sea"
		env.remote.mu.Unlock()

		resp, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("SyncTrip failed: %v", err)
		}
		if resp.Msg.Updated != 1 {
			t.Errorf("Expected 1 update, got %+v", resp.Msg)
		}

		rows, _ := env.store.GetExpenseRows(ctx, "101")
		if rows[0].Location != "Paris" || rows[0].Description != "Dinner by the sea" {
			t.Errorf("Unexpected row after sync: %+v", rows[0])
		}
	})

	t.Run("remote deletion removes rows", func(t *testing.T) {
		env.remote.mu.Lock()
		env.remote.groups["g1"] = env.remote.groups["g1"][1:]
		env.remote.mu.Unlock()

		resp, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("SyncTrip failed: %v", err)
		}
		if resp.Msg.Deleted != 1 {
			t.Errorf("Expected 1 delete, got %+v", resp.Msg)
		}
	})

	t.Run("remote failure maps to Unavailable", func(t *testing.T) {
		env.remote.setFail(&ledger.Error{Op: "get_expenses", StatusCode: http.StatusBadGateway})
		defer env.remote.setFail(nil)

		_, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		if connectCode(err) != connect.CodeUnavailable {
			t.Errorf("Expected Unavailable, got %v", err)
		}
	})

	t.Run("non-member is rejected", func(t *testing.T) {
		_, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "other"}))
		if connectCode(err) != connect.CodeNotFound {
			t.Errorf("Expected NotFound, got %v", err)
		}
	})
}

func TestExpenseService_SubmitExpense(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	ctx := context.Background()

	if _, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Goa"})); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	t.Run("personal", func(t *testing.T) {
		resp, err := env.expenses.SubmitExpense(ctx, connect.NewRequest(&api.SubmitExpenseRequest{
			GroupID:      "g1",
			Description:  "Souvenir",
			Cost:         dec("12.5"),
			CurrencyCode: "USD",
			Date:         "2024-03-03",
			Details:      api.ExpenseDetails{Category: "Shopping"},
			Shares:       []api.Share{{ParticipantID: "1", PaidShare: "12.5", OwedShare: "12.5"}},
		}))
		if err != nil {
			t.Fatalf("SubmitExpense failed: %v", err)
		}
		if resp.Msg.Classification != "personal" || !models.IsLocalID(resp.Msg.ExpenseID) {
			t.Errorf("Unexpected response: %+v", resp.Msg)
		}
		if len(resp.Msg.Expenses) != 1 || !resp.Msg.Expenses[0].Amount.Equal(dec("1037.5")) {
			t.Errorf("Unexpected rows: %+v", resp.Msg.Expenses)
		}

		sync, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("SyncTrip failed: %v", err)
		}
		if sync.Msg.Deleted != 0 {
			t.Errorf("Sync deleted a personal expense: %+v", sync.Msg)
		}
	})

	t.Run("shared is mirrored and stable under sync", func(t *testing.T) {
		resp, err := env.expenses.SubmitExpense(ctx, connect.NewRequest(&api.SubmitExpenseRequest{
			GroupID:      "g1",
			Description:  "Boat",
			Cost:         dec("40"),
			CurrencyCode: "USD",
			Date:         "2024-03-04",
			Shares: []api.Share{
				{ParticipantID: "1", PaidShare: "40", OwedShare: "20"},
				{ParticipantID: "2", PaidShare: "0", OwedShare: "20"},
			},
		}))
		if err != nil {
			t.Fatalf("SubmitExpense failed: %v", err)
		}
		if resp.Msg.Classification != "shared" || models.IsLocalID(resp.Msg.ExpenseID) {
			t.Errorf("Unexpected response: %+v", resp.Msg)
		}

		sync, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("SyncTrip failed: %v", err)
		}
		if sync.Msg.Inserted != 0 || sync.Msg.Updated != 0 || sync.Msg.Deleted != 0 {
			t.Errorf("Mirrored rows differ from the remote snapshot: %+v", sync.Msg)
		}
	})

	t.Run("invalid share", func(t *testing.T) {
		_, err := env.expenses.SubmitExpense(ctx, connect.NewRequest(&api.SubmitExpenseRequest{
			GroupID: "g1", Description: "Bad", Cost: dec("1"),
			Shares: []api.Share{{ParticipantID: "1", OwedShare: "abc"}},
		}))
		if connectCode(err) != connect.CodeInvalidArgument {
			t.Errorf("Expected InvalidArgument, got %v", err)
		}
	})

	t.Run("remote rejection maps to FailedPrecondition", func(t *testing.T) {
		env.remote.setFail(&ledger.Error{Op: "create_expense", StatusCode: http.StatusBadRequest})
		defer env.remote.setFail(nil)

		_, err := env.expenses.SubmitExpense(ctx, connect.NewRequest(&api.SubmitExpenseRequest{
			GroupID: "g1", Description: "Lunch", Cost: dec("10"),
			Shares: []api.Share{{ParticipantID: "1", OwedShare: "5"}, {ParticipantID: "2", OwedShare: "5"}},
		}))
		if connectCode(err) != connect.CodeFailedPrecondition {
			t.Errorf("Expected FailedPrecondition, got %v", err)
		}
	})

	t.Run("ListMyExpenses totals the caller's rows", func(t *testing.T) {
		resp, err := env.expenses.ListMyExpenses(ctx, connect.NewRequest(&api.ListMyExpensesRequest{GroupID: "g1"}))
		if err != nil {
			t.Fatalf("ListMyExpenses failed: %v", err)
		}
		// Dinner 10 USD, Souvenir 12.5 USD, Boat 20 USD at 83.
		if !resp.Msg.Total.Equal(dec("3527.5")) || resp.Msg.Currency != "INR" {
			t.Errorf("Unexpected total: %s %s", resp.Msg.Total, resp.Msg.Currency)
		}
		for _, e := range resp.Msg.Expenses {
			if e.ParticipantID != "1" {
				t.Errorf("Foreign row listed: %+v", e)
			}
		}
	})

	t.Run("DeleteExpense", func(t *testing.T) {
		_, err := env.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: "102"}))
		if err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		rows, _ := env.store.GetExpenseRows(ctx, "102")
		if len(rows) != 0 {
			t.Errorf("Rows remain after delete: %d", len(rows))
		}

		_, err = env.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: "102"}))
		if connectCode(err) != connect.CodeNotFound {
			t.Errorf("Expected NotFound, got %v", err)
		}
	})
}

func TestTripService_SummaryAndDelete(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	ctx := context.Background()

	created, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Goa"}))
	if err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	tripID := created.Msg.Trip.ID

	summary, err := env.trips.GetTripSummary(ctx, connect.NewRequest(&api.GetTripSummaryRequest{TripID: tripID}))
	if err != nil {
		t.Fatalf("GetTripSummary failed: %v", err)
	}
	if !summary.Msg.Total.Equal(dec("2490")) || summary.Msg.Currency != "INR" {
		t.Errorf("Unexpected summary total: %s %s", summary.Msg.Total, summary.Msg.Currency)
	}
	if len(summary.Msg.ByParticipant) != 2 {
		t.Fatalf("Expected 2 participants, got %d", len(summary.Msg.ByParticipant))
	}
	// Taxi (1660) puts participant 2 first; both were stored as users.
	if summary.Msg.ByParticipant[0].Key != "2" || summary.Msg.ByParticipant[0].Name != "Ben" {
		t.Errorf("Unexpected first participant: %+v", summary.Msg.ByParticipant[0])
	}
	if summary.Msg.ByParticipant[1].Name != "Asha" {
		t.Errorf("Unexpected second participant: %+v", summary.Msg.ByParticipant[1])
	}

	updated, err := env.trips.UpdateTrip(ctx, connect.NewRequest(&api.UpdateTripRequest{
		TripID: tripID, Name: "Goa 2024", Locations: []string{"Panaji"},
	}))
	if err != nil {
		t.Fatalf("UpdateTrip failed: %v", err)
	}
	if updated.Msg.Trip.Name != "Goa 2024" {
		t.Errorf("Name not updated: %s", updated.Msg.Trip.Name)
	}

	list, err := env.trips.ListTrips(ctx, connect.NewRequest(&api.ListTripsRequest{}))
	if err != nil {
		t.Fatalf("ListTrips failed: %v", err)
	}
	if len(list.Msg.Trips) != 1 {
		t.Errorf("Expected 1 trip, got %d", len(list.Msg.Trips))
	}

	if _, err := env.trips.DeleteTrip(ctx, connect.NewRequest(&api.DeleteTripRequest{TripID: tripID})); err != nil {
		t.Fatalf("DeleteTrip failed: %v", err)
	}
	rows, _ := env.store.ListExpenseRows(ctx, "g1")
	if len(rows) != 0 {
		t.Errorf("Expected cascade delete of rows, %d remain", len(rows))
	}
	siblings, _ := env.store.ListTripsByGroup(ctx, "g1")
	if len(siblings) != 0 {
		t.Errorf("Expected sibling trips deleted, %d remain", len(siblings))
	}

	_, err = env.trips.GetTrip(ctx, connect.NewRequest(&api.GetTripRequest{TripID: tripID}))
	if connectCode(err) != connect.CodeNotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestTripService_DeleteWaitsForInFlightSync(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	ctx := context.Background()

	created, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Goa"}))
	if err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	// The pass in flight still sees 101 and 102, so it would re-insert rows
	// deleted underneath it.
	if _, err := env.store.DeleteExpense(ctx, "101"); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	fetched := make(chan struct{})
	release := make(chan struct{})
	env.remote.mu.Lock()
	env.remote.onFetch = func() {
		close(fetched)
		<-release
	}
	env.remote.mu.Unlock()

	syncDone := make(chan error, 1)
	go func() {
		_, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		syncDone <- err
	}()
	<-fetched

	deleteDone := make(chan error, 1)
	go func() {
		_, err := env.trips.DeleteTrip(ctx, connect.NewRequest(&api.DeleteTripRequest{TripID: created.Msg.Trip.ID}))
		deleteDone <- err
	}()

	select {
	case <-deleteDone:
		t.Fatal("DeleteTrip completed while a sync of the group was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-syncDone; err != nil {
		t.Fatalf("SyncTrip failed: %v", err)
	}
	if err := <-deleteDone; err != nil {
		t.Fatalf("DeleteTrip failed: %v", err)
	}

	rows, _ := env.store.ListExpenseRows(ctx, "g1")
	if len(rows) != 0 {
		t.Errorf("Expected no rows after DeleteTrip, %d remain", len(rows))
	}
}

func TestCurrencyService(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	resp, err := env.rates.Convert(ctx, connect.NewRequest(&api.ConvertRequest{Amount: dec("33.335"), From: "usd"}))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !resp.Msg.Amount.Equal(dec("2766.81")) || resp.Msg.To != "INR" {
		t.Errorf("Convert = %s %s, want 2766.81 INR", resp.Msg.Amount, resp.Msg.To)
	}

	batch, err := env.rates.ConvertBatch(ctx, connect.NewRequest(&api.ConvertBatchRequest{Base: "USD", Targets: []string{"INR", "USD"}}))
	if err != nil {
		t.Fatalf("ConvertBatch failed: %v", err)
	}
	if !batch.Msg.Rates["INR"].Equal(dec("83")) || !batch.Msg.Rates["USD"].Equal(dec("1")) {
		t.Errorf("Unexpected rates: %v", batch.Msg.Rates)
	}

	_, err = env.rates.Convert(ctx, connect.NewRequest(&api.ConvertRequest{Amount: dec("1"), From: "ZZZ"}))
	if connectCode(err) != connect.CodeInvalidArgument {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestCurrencyService_ListCurrencies(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	env.remote.currencies = []models.RemoteCurrency{
		{Code: "USD", Unit: "$"},
		{Code: "XYZ", Unit: "?"},
		{Code: "inr", Unit: "₹"},
		{Code: "INR", Unit: "₹"},
	}

	resp, err := env.rates.ListCurrencies(ctx, connect.NewRequest(&api.ListCurrenciesRequest{}))
	if err != nil {
		t.Fatalf("ListCurrencies failed: %v", err)
	}
	want := []api.Currency{{Code: "INR", Unit: "₹"}, {Code: "USD", Unit: "$"}}
	if len(resp.Msg.Currencies) != len(want) {
		t.Fatalf("Expected %v, got %v", want, resp.Msg.Currencies)
	}
	for i := range want {
		if resp.Msg.Currencies[i] != want[i] {
			t.Errorf("Currency %d = %+v, want %+v", i, resp.Msg.Currencies[i], want[i])
		}
	}

	t.Run("remote failure", func(t *testing.T) {
		env.remote.setFail(&ledger.Error{Op: "get_currencies", StatusCode: http.StatusServiceUnavailable})
		defer env.remote.setFail(nil)

		_, err := env.rates.ListCurrencies(ctx, connect.NewRequest(&api.ListCurrenciesRequest{}))
		if connectCode(err) != connect.CodeUnavailable {
			t.Errorf("Expected Unavailable, got %v", err)
		}
	})

	t.Run("no ledger configured", func(t *testing.T) {
		svc := NewCurrencyService(currency.NewNormalizer(nil, nil, "INR"), nil)
		_, err := svc.ListCurrencies(ctx, connect.NewRequest(&api.ListCurrenciesRequest{}))
		if connectCode(err) != connect.CodeFailedPrecondition {
			t.Errorf("Expected FailedPrecondition, got %v", err)
		}
	})
}

func TestTripService_ListRemoteGroups(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	env.remote.members["g2"] = []models.RemoteUser{{ID: "1", Name: "Asha"}}
	ctx := context.Background()

	if _, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Goa"})); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	resp, err := env.trips.ListRemoteGroups(ctx, connect.NewRequest(&api.ListRemoteGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListRemoteGroups failed: %v", err)
	}
	if len(resp.Msg.Groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(resp.Msg.Groups))
	}
	g1, g2 := resp.Msg.Groups[0], resp.Msg.Groups[1]
	if g1.ID != "g1" || !g1.Tracked || len(g1.Members) != 2 || g1.Members[1].Name != "Ben" {
		t.Errorf("Unexpected g1: %+v", g1)
	}
	if g2.ID != "g2" || g2.Tracked {
		t.Errorf("Unexpected g2: %+v", g2)
	}

	t.Run("no ledger configured", func(t *testing.T) {
		svc := NewTripService(env.store, nil, nil, "INR")
		_, err := svc.ListRemoteGroups(ctx, connect.NewRequest(&api.ListRemoteGroupsRequest{}))
		if connectCode(err) != connect.CodeFailedPrecondition {
			t.Errorf("Expected FailedPrecondition, got %v", err)
		}
	})
}

func TestAuthService(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "solo@example.com", Name: "Solo", Password: "password123",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.Token == "" || reg.Msg.User.RemoteID != "" {
		t.Errorf("Unexpected register response: %+v", reg.Msg)
	}

	_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "solo@example.com", Name: "Solo", Password: "password123",
	}))
	if connectCode(err) != connect.CodeAlreadyExists {
		t.Errorf("Expected AlreadyExists, got %v", err)
	}

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "solo@example.com", Password: "password123"}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "solo@example.com", Password: "nope-nope"}))
	if connectCode(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected Unauthenticated, got %v", err)
	}

	t.Run("GetCurrentUser", func(t *testing.T) {
		req := connect.NewRequest(&api.GetCurrentUserRequest{})
		req.Header().Set("Authorization", "Bearer "+login.Msg.Token)
		resp, err := env.auth.GetCurrentUser(ctx, req)
		if err != nil {
			t.Fatalf("GetCurrentUser failed: %v", err)
		}
		if resp.Msg.User.Email != "solo@example.com" {
			t.Errorf("Unexpected user: %+v", resp.Msg.User)
		}

		_, err = env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
		if connectCode(err) != connect.CodeUnauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("LinkRemoteAccount", func(t *testing.T) {
		resp, err := env.auth.LinkRemoteAccount(ctx, connect.NewRequest(&api.LinkRemoteAccountRequest{AccessToken: "remote-token"}))
		if err != nil {
			t.Fatalf("LinkRemoteAccount failed: %v", err)
		}
		if resp.Msg.User.RemoteID != "7" || resp.Msg.Token == "" {
			t.Errorf("Unexpected link response: %+v", resp.Msg)
		}

		_, err = env.auth.LinkRemoteAccount(ctx, connect.NewRequest(&api.LinkRemoteAccountRequest{}))
		if connectCode(err) != connect.CodeInvalidArgument {
			t.Errorf("Expected InvalidArgument, got %v", err)
		}
	})
}

func TestExpenseService_SubmitWaitsForInFlightSync(t *testing.T) {
	env := setupTestServer(t)
	env.seedGroup()
	ctx := context.Background()

	if _, err := env.trips.CreateTrip(ctx, connect.NewRequest(&api.CreateTripRequest{GroupID: "g1", Name: "Goa"})); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	fetched := make(chan struct{})
	release := make(chan struct{})
	env.remote.mu.Lock()
	env.remote.onFetch = func() {
		close(fetched)
		<-release
	}
	env.remote.mu.Unlock()

	syncDone := make(chan error, 1)
	go func() {
		_, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
		syncDone <- err
	}()
	<-fetched

	type submitted struct {
		resp *connect.Response[api.SubmitExpenseResponse]
		err  error
	}
	submitDone := make(chan submitted, 1)
	go func() {
		resp, err := env.expenses.SubmitExpense(ctx, connect.NewRequest(&api.SubmitExpenseRequest{
			GroupID:      "g1",
			Description:  "Ferry",
			Cost:         dec("40"),
			CurrencyCode: "INR",
			Date:         "2024-03-04",
			Details:      api.ExpenseDetails{Category: "Transport"},
			Shares: []api.Share{
				{ParticipantID: "1", PaidShare: "40", OwedShare: "20"},
				{ParticipantID: "2", PaidShare: "0", OwedShare: "20"},
			},
		}))
		submitDone <- submitted{resp, err}
	}()

	select {
	case <-submitDone:
		t.Fatal("Submission completed while a sync of the group was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-syncDone; err != nil {
		t.Fatalf("SyncTrip failed: %v", err)
	}
	got := <-submitDone
	if got.err != nil {
		t.Fatalf("SubmitExpense failed: %v", got.err)
	}
	id := got.resp.Msg.ExpenseID

	rows, _ := env.store.GetExpenseRows(ctx, id)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows for %s after the stale pass, got %d", id, len(rows))
	}

	resp, err := env.expenses.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: "g1"}))
	if err != nil {
		t.Fatalf("SyncTrip failed: %v", err)
	}
	if resp.Msg.Deleted != 0 {
		t.Errorf("Expected no deletes, got %+v", resp.Msg)
	}
	rows, _ = env.store.GetExpenseRows(ctx, id)
	for _, r := range rows {
		if r.Category != "Transport" {
			t.Errorf("Category lost: %+v", r)
		}
	}
}
