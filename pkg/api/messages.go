// Package api defines the tripledger RPC messages and their Connect
// handlers and clients. Messages are plain structs carried by a JSON codec.
// Amounts are decimal strings; dates are YYYY-MM-DD strings.
package api

import "github.com/shopspring/decimal"

// Share is one participant's part of a submitted expense. Shares are
// strings so that malformed values reach validation instead of the codec.
type Share struct {
	ParticipantID string `json:"participant_id"`
	PaidShare     string `json:"paid_share"`
	OwedShare     string `json:"owed_share"`
}

// ExpenseDetails are the locally owned fields of an expense.
type ExpenseDetails struct {
	Location  string `json:"location,omitempty"`
	Category  string `json:"category,omitempty"`
	StayStart string `json:"stay_start,omitempty"`
	StayEnd   string `json:"stay_end,omitempty"`
}

// Expense is one participant's row of one expense.
type Expense struct {
	ID             int64           `json:"id"`
	ExpenseID      string          `json:"expense_id"`
	GroupID        string          `json:"group_id"`
	ParticipantID  string          `json:"participant_id"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyCode   string          `json:"currency_code"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Date           string          `json:"date,omitempty"`
	Personal       bool            `json:"personal"`
	ExpenseDetails
}

type SubmitExpenseRequest struct {
	// ExpenseID is set when editing an existing expense.
	ExpenseID    string          `json:"expense_id,omitempty"`
	GroupID      string          `json:"group_id"`
	Description  string          `json:"description"`
	Cost         decimal.Decimal `json:"cost"`
	CurrencyCode string          `json:"currency_code"`
	Date         string          `json:"date,omitempty"`
	Details      ExpenseDetails  `json:"details"`
	Shares       []Share         `json:"shares"`
}

type SubmitExpenseResponse struct {
	ExpenseID      string    `json:"expense_id"`
	Classification string    `json:"classification"`
	Expenses       []Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type UpdateExpenseDetailsRequest struct {
	ExpenseID string         `json:"expense_id"`
	Details   ExpenseDetails `json:"details"`
}

type UpdateExpenseDetailsResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

// ListMyExpensesRequest lists the caller's rows of a group.
type ListMyExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListMyExpensesResponse struct {
	Expenses []Expense      `json:"expenses"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

type SyncTripRequest struct {
	GroupID string `json:"group_id"`
}

type SyncTripResponse struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}

// Trip is the caller's row of a trip.
type Trip struct {
	ID            string   `json:"id"`
	GroupID       string   `json:"group_id"`
	Name          string   `json:"name"`
	StartDate     string   `json:"start_date,omitempty"`
	EndDate       string   `json:"end_date,omitempty"`
	Currencies    []string `json:"currencies"`
	Locations     []string `json:"locations"`
	CreatedBy     string   `json:"created_by"`
	CreatedByName string   `json:"created_by_name,omitempty"`
	CreatedAt     int64    `json:"created_at"`
}

type CreateTripRequest struct {
	GroupID    string   `json:"group_id"`
	Name       string   `json:"name"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Currencies []string `json:"currencies"`
	Locations  []string `json:"locations"`

	// ParticipantIDs are remote user ids. When empty the group's members
	// are fetched from the remote ledger.
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

type CreateTripResponse struct {
	Trip *Trip            `json:"trip"`
	Sync *SyncTripResponse `json:"sync,omitempty"`
}

type UpdateTripRequest struct {
	TripID     string   `json:"trip_id"`
	Name       string   `json:"name"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Currencies []string `json:"currencies"`
	Locations  []string `json:"locations"`
}

type UpdateTripResponse struct {
	Trip *Trip `json:"trip"`
}

type ListTripsRequest struct{}

type ListTripsResponse struct {
	Trips []*Trip `json:"trips"`
}

type GetTripRequest struct {
	TripID string `json:"trip_id"`
}

type GetTripResponse struct {
	Trip *Trip `json:"trip"`
}

type DeleteTripRequest struct {
	TripID string `json:"trip_id"`
}

type DeleteTripResponse struct{}

type GetTripSummaryRequest struct {
	TripID string `json:"trip_id"`
}

// Total is the amount attributed to one key of a breakdown.
type Total struct {
	Key string `json:"key"`
	// Name labels participant totals when the participant is known locally.
	Name   string          `json:"name,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type GetTripSummaryResponse struct {
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	ByParticipant []Total         `json:"by_participant"`
	ByCategory    []Total         `json:"by_category"`
	ByLocation    []Total         `json:"by_location"`
	ByDay         []Total         `json:"by_day"`

	// OriginalTotals are keyed by currency code, in original amounts.
	OriginalTotals []Total `json:"original_totals"`
}

type ListRemoteGroupsRequest struct{}

// RemoteMember is a member of a remote group.
type RemoteMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemoteGroup is a group on the remote ledger the caller can create a trip for.
type RemoteGroup struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Members []RemoteMember `json:"members"`
	// Tracked is set when the caller already has a trip for the group.
	Tracked bool `json:"tracked"`
}

type ListRemoteGroupsResponse struct {
	Groups []RemoteGroup `json:"groups"`
}

type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	// To defaults to the reporting currency.
	To string `json:"to,omitempty"`
}

type ConvertResponse struct {
	Amount decimal.Decimal `json:"amount"`
	Rate   decimal.Decimal `json:"rate"`
	To     string          `json:"to"`
}

type ConvertBatchRequest struct {
	Base    string   `json:"base"`
	Targets []string `json:"targets"`
}

type ConvertBatchResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

type ListCurrenciesRequest struct{}

// Currency is a currency code the remote ledger accepts.
type Currency struct {
	Code string `json:"code"`
	Unit string `json:"unit,omitempty"`
}

type ListCurrenciesResponse struct {
	Currencies []Currency `json:"currencies"`
}

type User struct {
	ID        string `json:"id"`
	RemoteID  string `json:"remote_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// LinkRemoteAccountRequest signs in with a remote ledger access token.
type LinkRemoteAccountRequest struct {
	AccessToken string `json:"access_token"`
}

type LinkRemoteAccountResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}
