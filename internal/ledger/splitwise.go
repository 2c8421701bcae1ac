package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/models"
)

const (
	// DefaultBaseURL is the Splitwise API root.
	DefaultBaseURL = "https://secure.splitwise.com/api/v3.0"

	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 15 * time.Second
)

// Ensure SplitwiseClient implements Client and Directory.
var (
	_ Client    = (*SplitwiseClient)(nil)
	_ Directory = (*SplitwiseClient)(nil)
)

// SplitwiseClient implements Client and Directory over the Splitwise v3 API.
// Requests are authenticated with a bearer token.
type SplitwiseClient struct {
	baseURL string
	http    *http.Client
}

// NewSplitwiseClient returns a client for baseURL using token for every
// request. A zero timeout uses DefaultTimeout.
func NewSplitwiseClient(baseURL, token string, timeout time.Duration) *SplitwiseClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SplitwiseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: &bearerTransport{token: token, base: http.DefaultTransport},
		},
	}
}

// bearerTransport adds an Authorization header to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// Wire types. Ids are numbers on the wire; shares are decimal strings.

type swUser struct {
	ID        json.Number `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
}

func (u swUser) model() models.RemoteUser {
	return models.RemoteUser{
		ID:    u.ID.String(),
		Name:  strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email: u.Email,
	}
}

type swShare struct {
	UserID    json.Number     `json:"user_id"`
	User      *swUser         `json:"user"`
	PaidShare decimal.Decimal `json:"paid_share"`
	OwedShare decimal.Decimal `json:"owed_share"`
}

type swExpense struct {
	ID           json.Number     `json:"id"`
	GroupID      json.Number     `json:"group_id"`
	Description  string          `json:"description"`
	Cost         decimal.Decimal `json:"cost"`
	CurrencyCode string          `json:"currency_code"`
	Date         string          `json:"date"`
	CreatedAt    string          `json:"created_at"`
	DeletedAt    *string         `json:"deleted_at"`
	DeletedBy    json.RawMessage `json:"deleted_by"`
	Users        []swShare       `json:"users"`
}

func (e *swExpense) deleted() bool {
	if e.DeletedAt != nil {
		return true
	}
	by := strings.TrimSpace(string(e.DeletedBy))
	return by != "" && by != "null"
}

func (e *swExpense) model() models.RemoteExpense {
	exp := models.RemoteExpense{
		ID:           e.ID.String(),
		GroupID:      e.GroupID.String(),
		Description:  e.Description,
		CurrencyCode: e.CurrencyCode,
		Cost:         e.Cost,
		Date:         parseTimestamp(e.Date),
		CreatedAt:    parseTimestamp(e.CreatedAt),
	}
	for _, u := range e.Users {
		id := u.UserID.String()
		if id == "" && u.User != nil {
			id = u.User.ID.String()
		}
		exp.Shares = append(exp.Shares, models.Share{
			ParticipantID: id,
			PaidShare:     u.PaidShare,
			OwedShare:     u.OwedShare,
		})
	}
	return exp
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := models.ParseDate(s)
	return t
}

// swErrors is the "errors" member of Splitwise responses: an object or list
// of messages, empty on success.
type swErrors json.RawMessage

func (e swErrors) message() string {
	raw := strings.TrimSpace(string(e))
	switch raw {
	case "", "null", "{}", "[]":
		return ""
	}
	return raw
}

type expensesResponse struct {
	Expenses []swExpense    `json:"expenses"`
	Errors   json.RawMessage `json:"errors"`
}

// FetchGroupExpenses implements Client.
func (c *SplitwiseClient) FetchGroupExpenses(ctx context.Context, groupID string, limit int) ([]models.RemoteExpense, error) {
	if limit <= 0 {
		limit = DefaultExpenseLimit
	}
	query := url.Values{}
	query.Set("group_id", groupID)
	query.Set("limit", strconv.Itoa(limit))

	var resp expensesResponse
	if err := c.do(ctx, "get_expenses", http.MethodGet, "/get_expenses?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	expenses := make([]models.RemoteExpense, 0, len(resp.Expenses))
	for i := range resp.Expenses {
		if resp.Expenses[i].deleted() {
			continue
		}
		expenses = append(expenses, resp.Expenses[i].model())
	}
	slog.Debug("Fetched remote expenses",
		"group_id", groupID,
		"received", len(resp.Expenses),
		"active", len(expenses),
	)
	return expenses, nil
}

// CreateExpense implements Client.
func (c *SplitwiseClient) CreateExpense(ctx context.Context, payload ExpensePayload) (*models.RemoteExpense, error) {
	return c.writeExpense(ctx, "create_expense", "/create_expense", payload)
}

// UpdateExpense implements Client.
func (c *SplitwiseClient) UpdateExpense(ctx context.Context, id string, payload ExpensePayload) (*models.RemoteExpense, error) {
	return c.writeExpense(ctx, "update_expense", "/update_expense/"+url.PathEscape(id), payload)
}

func (c *SplitwiseClient) writeExpense(ctx context.Context, op, path string, payload ExpensePayload) (*models.RemoteExpense, error) {
	var resp expensesResponse
	if err := c.do(ctx, op, http.MethodPost, path, payload.Form(), &resp); err != nil {
		return nil, err
	}
	if msg := swErrors(resp.Errors).message(); msg != "" {
		metrics.LedgerRequests.WithLabelValues(op, "rejected").Inc()
		return nil, &Error{Op: op, StatusCode: http.StatusOK, Message: msg}
	}
	if len(resp.Expenses) == 0 {
		return nil, &Error{Op: op, StatusCode: http.StatusOK, Message: "response carries no expense"}
	}
	exp := resp.Expenses[0].model()
	return &exp, nil
}

// DeleteExpense implements Client.
func (c *SplitwiseClient) DeleteExpense(ctx context.Context, id string) error {
	var resp struct {
		Success bool            `json:"success"`
		Errors  json.RawMessage `json:"errors"`
	}
	const op = "delete_expense"
	if err := c.do(ctx, op, http.MethodPost, "/delete_expense/"+url.PathEscape(id), url.Values{}, &resp); err != nil {
		return err
	}
	if msg := swErrors(resp.Errors).message(); msg != "" || !resp.Success {
		metrics.LedgerRequests.WithLabelValues(op, "rejected").Inc()
		if msg == "" {
			msg = "delete not acknowledged"
		}
		return &Error{Op: op, StatusCode: http.StatusOK, Message: msg}
	}
	return nil
}

// CurrentUser implements Directory.
func (c *SplitwiseClient) CurrentUser(ctx context.Context) (*models.RemoteUser, error) {
	var resp struct {
		User swUser `json:"user"`
	}
	if err := c.do(ctx, "get_current_user", http.MethodGet, "/get_current_user", nil, &resp); err != nil {
		return nil, err
	}
	user := resp.User.model()
	return &user, nil
}

type swGroup struct {
	ID      json.Number `json:"id"`
	Name    string      `json:"name"`
	Members []swUser    `json:"members"`
}

func (g swGroup) model() models.RemoteGroup {
	group := models.RemoteGroup{ID: g.ID.String(), Name: g.Name}
	for _, m := range g.Members {
		group.Members = append(group.Members, m.model())
	}
	return group
}

// GetGroup implements Directory.
func (c *SplitwiseClient) GetGroup(ctx context.Context, groupID string) (*models.RemoteGroup, error) {
	var resp struct {
		Group swGroup `json:"group"`
	}
	if err := c.do(ctx, "get_group", http.MethodGet, "/get_group/"+url.PathEscape(groupID), nil, &resp); err != nil {
		return nil, err
	}
	group := resp.Group.model()
	return &group, nil
}

// ListGroups implements Directory. The pseudo-group with id 0, which holds
// expenses outside any group, is skipped.
func (c *SplitwiseClient) ListGroups(ctx context.Context) ([]models.RemoteGroup, error) {
	var resp struct {
		Groups []swGroup `json:"groups"`
	}
	if err := c.do(ctx, "get_groups", http.MethodGet, "/get_groups", nil, &resp); err != nil {
		return nil, err
	}
	groups := make([]models.RemoteGroup, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		if g.ID.String() == "0" || g.ID.String() == "" {
			continue
		}
		groups = append(groups, g.model())
	}
	return groups, nil
}

// ListCurrencies implements Directory.
func (c *SplitwiseClient) ListCurrencies(ctx context.Context) ([]models.RemoteCurrency, error) {
	var resp struct {
		Currencies []struct {
			CurrencyCode string `json:"currency_code"`
			Unit         string `json:"unit"`
		} `json:"currencies"`
	}
	if err := c.do(ctx, "get_currencies", http.MethodGet, "/get_currencies", nil, &resp); err != nil {
		return nil, err
	}
	currencies := make([]models.RemoteCurrency, 0, len(resp.Currencies))
	for _, cur := range resp.Currencies {
		currencies = append(currencies, models.RemoteCurrency{Code: cur.CurrencyCode, Unit: cur.Unit})
	}
	return currencies, nil
}

// do sends one request and decodes the JSON response into out.
// form, when non-nil, is sent as an urlencoded body.
func (c *SplitwiseClient) do(ctx context.Context, op, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.LedgerRequests.WithLabelValues(op, "error").Inc()
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.LedgerRequests.WithLabelValues(op, "error").Inc()
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.LedgerRequests.WithLabelValues(op, "http_"+strconv.Itoa(resp.StatusCode)).Inc()
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(content)}
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(out); err != nil {
		metrics.LedgerRequests.WithLabelValues(op, "error").Inc()
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	metrics.LedgerRequests.WithLabelValues(op, "ok").Inc()
	return nil
}

// errorMessage extracts a readable message from an error body.
func errorMessage(content []byte) string {
	var body struct {
		Error  string          `json:"error"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(content, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if msg := swErrors(body.Errors).message(); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(content))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
