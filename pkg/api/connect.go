package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Fully-qualified service names.
const (
	ExpenseServiceName  = "tripledger.v1.ExpenseService"
	TripServiceName     = "tripledger.v1.TripService"
	CurrencyServiceName = "tripledger.v1.CurrencyService"
	AuthServiceName     = "tripledger.v1.AuthService"
)

// Procedure paths, in the form "/<service>/<method>".
const (
	ExpenseServiceSubmitExpenseProcedure        = "/" + ExpenseServiceName + "/SubmitExpense"
	ExpenseServiceDeleteExpenseProcedure        = "/" + ExpenseServiceName + "/DeleteExpense"
	ExpenseServiceUpdateExpenseDetailsProcedure = "/" + ExpenseServiceName + "/UpdateExpenseDetails"
	ExpenseServiceListExpensesProcedure         = "/" + ExpenseServiceName + "/ListExpenses"
	ExpenseServiceListMyExpensesProcedure       = "/" + ExpenseServiceName + "/ListMyExpenses"
	ExpenseServiceSyncTripProcedure             = "/" + ExpenseServiceName + "/SyncTrip"

	TripServiceCreateTripProcedure       = "/" + TripServiceName + "/CreateTrip"
	TripServiceUpdateTripProcedure       = "/" + TripServiceName + "/UpdateTrip"
	TripServiceListTripsProcedure        = "/" + TripServiceName + "/ListTrips"
	TripServiceGetTripProcedure          = "/" + TripServiceName + "/GetTrip"
	TripServiceDeleteTripProcedure       = "/" + TripServiceName + "/DeleteTrip"
	TripServiceGetTripSummaryProcedure   = "/" + TripServiceName + "/GetTripSummary"
	TripServiceListRemoteGroupsProcedure = "/" + TripServiceName + "/ListRemoteGroups"

	CurrencyServiceConvertProcedure        = "/" + CurrencyServiceName + "/Convert"
	CurrencyServiceConvertBatchProcedure   = "/" + CurrencyServiceName + "/ConvertBatch"
	CurrencyServiceListCurrenciesProcedure = "/" + CurrencyServiceName + "/ListCurrencies"

	AuthServiceRegisterProcedure          = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure             = "/" + AuthServiceName + "/Login"
	AuthServiceLinkRemoteAccountProcedure = "/" + AuthServiceName + "/LinkRemoteAccount"
	AuthServiceGetCurrentUserProcedure    = "/" + AuthServiceName + "/GetCurrentUser"
)

// ServicePath returns the path prefix a service's handler is mounted under.
func ServicePath(service string) string {
	return "/" + service + "/"
}

// IsProcedurePath reports whether path addresses any tripledger RPC.
func IsProcedurePath(path string) bool {
	return strings.HasPrefix(path, "/tripledger.v1.")
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}

// unary mounts one unary procedure on mux.
func unary[Req, Res any](
	mux *http.ServeMux,
	procedure string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

// ExpenseServiceHandler is implemented by the expense service.
type ExpenseServiceHandler interface {
	SubmitExpense(context.Context, *connect.Request[SubmitExpenseRequest]) (*connect.Response[SubmitExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	UpdateExpenseDetails(context.Context, *connect.Request[UpdateExpenseDetailsRequest]) (*connect.Response[UpdateExpenseDetailsResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	ListMyExpenses(context.Context, *connect.Request[ListMyExpensesRequest]) (*connect.Response[ListMyExpensesResponse], error)
	SyncTrip(context.Context, *connect.Request[SyncTripRequest]) (*connect.Response[SyncTripResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler for svc and returns the path to mount it on.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, ExpenseServiceSubmitExpenseProcedure, svc.SubmitExpense, opts)
	unary(mux, ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts)
	unary(mux, ExpenseServiceUpdateExpenseDetailsProcedure, svc.UpdateExpenseDetails, opts)
	unary(mux, ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts)
	unary(mux, ExpenseServiceListMyExpensesProcedure, svc.ListMyExpenses, opts)
	unary(mux, ExpenseServiceSyncTripProcedure, svc.SyncTrip, opts)
	return ServicePath(ExpenseServiceName), mux
}

// TripServiceHandler is implemented by the trip service.
type TripServiceHandler interface {
	CreateTrip(context.Context, *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error)
	UpdateTrip(context.Context, *connect.Request[UpdateTripRequest]) (*connect.Response[UpdateTripResponse], error)
	ListTrips(context.Context, *connect.Request[ListTripsRequest]) (*connect.Response[ListTripsResponse], error)
	GetTrip(context.Context, *connect.Request[GetTripRequest]) (*connect.Response[GetTripResponse], error)
	DeleteTrip(context.Context, *connect.Request[DeleteTripRequest]) (*connect.Response[DeleteTripResponse], error)
	GetTripSummary(context.Context, *connect.Request[GetTripSummaryRequest]) (*connect.Response[GetTripSummaryResponse], error)
	ListRemoteGroups(context.Context, *connect.Request[ListRemoteGroupsRequest]) (*connect.Response[ListRemoteGroupsResponse], error)
}

// NewTripServiceHandler builds an HTTP handler for svc and returns the path to mount it on.
func NewTripServiceHandler(svc TripServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, TripServiceCreateTripProcedure, svc.CreateTrip, opts)
	unary(mux, TripServiceUpdateTripProcedure, svc.UpdateTrip, opts)
	unary(mux, TripServiceListTripsProcedure, svc.ListTrips, opts)
	unary(mux, TripServiceGetTripProcedure, svc.GetTrip, opts)
	unary(mux, TripServiceDeleteTripProcedure, svc.DeleteTrip, opts)
	unary(mux, TripServiceGetTripSummaryProcedure, svc.GetTripSummary, opts)
	unary(mux, TripServiceListRemoteGroupsProcedure, svc.ListRemoteGroups, opts)
	return ServicePath(TripServiceName), mux
}

// CurrencyServiceHandler is implemented by the currency service.
type CurrencyServiceHandler interface {
	Convert(context.Context, *connect.Request[ConvertRequest]) (*connect.Response[ConvertResponse], error)
	ConvertBatch(context.Context, *connect.Request[ConvertBatchRequest]) (*connect.Response[ConvertBatchResponse], error)
	ListCurrencies(context.Context, *connect.Request[ListCurrenciesRequest]) (*connect.Response[ListCurrenciesResponse], error)
}

// NewCurrencyServiceHandler builds an HTTP handler for svc and returns the path to mount it on.
func NewCurrencyServiceHandler(svc CurrencyServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, CurrencyServiceConvertProcedure, svc.Convert, opts)
	unary(mux, CurrencyServiceConvertBatchProcedure, svc.ConvertBatch, opts)
	unary(mux, CurrencyServiceListCurrenciesProcedure, svc.ListCurrencies, opts)
	return ServicePath(CurrencyServiceName), mux
}

// AuthServiceHandler is implemented by the auth service.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	LinkRemoteAccount(context.Context, *connect.Request[LinkRemoteAccountRequest]) (*connect.Response[LinkRemoteAccountResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler for svc and returns the path to mount it on.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, AuthServiceRegisterProcedure, svc.Register, opts)
	unary(mux, AuthServiceLoginProcedure, svc.Login, opts)
	unary(mux, AuthServiceLinkRemoteAccountProcedure, svc.LinkRemoteAccount, opts)
	unary(mux, AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts)
	return ServicePath(AuthServiceName), mux
}

// ExpenseServiceClient calls the expense service.
type ExpenseServiceClient struct {
	submitExpense        *connect.Client[SubmitExpenseRequest, SubmitExpenseResponse]
	deleteExpense        *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	updateExpenseDetails *connect.Client[UpdateExpenseDetailsRequest, UpdateExpenseDetailsResponse]
	listExpenses         *connect.Client[ListExpensesRequest, ListExpensesResponse]
	listMyExpenses       *connect.Client[ListMyExpensesRequest, ListMyExpensesResponse]
	syncTrip             *connect.Client[SyncTripRequest, SyncTripResponse]
}

// NewExpenseServiceClient returns a client for the service at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &ExpenseServiceClient{
		submitExpense:        connect.NewClient[SubmitExpenseRequest, SubmitExpenseResponse](httpClient, baseURL+ExpenseServiceSubmitExpenseProcedure, opts...),
		deleteExpense:        connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		updateExpenseDetails: connect.NewClient[UpdateExpenseDetailsRequest, UpdateExpenseDetailsResponse](httpClient, baseURL+ExpenseServiceUpdateExpenseDetailsProcedure, opts...),
		listExpenses:         connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		listMyExpenses:       connect.NewClient[ListMyExpensesRequest, ListMyExpensesResponse](httpClient, baseURL+ExpenseServiceListMyExpensesProcedure, opts...),
		syncTrip:             connect.NewClient[SyncTripRequest, SyncTripResponse](httpClient, baseURL+ExpenseServiceSyncTripProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) SubmitExpense(ctx context.Context, req *connect.Request[SubmitExpenseRequest]) (*connect.Response[SubmitExpenseResponse], error) {
	return c.submitExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpenseDetails(ctx context.Context, req *connect.Request[UpdateExpenseDetailsRequest]) (*connect.Response[UpdateExpenseDetailsResponse], error) {
	return c.updateExpenseDetails.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListMyExpenses(ctx context.Context, req *connect.Request[ListMyExpensesRequest]) (*connect.Response[ListMyExpensesResponse], error) {
	return c.listMyExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SyncTrip(ctx context.Context, req *connect.Request[SyncTripRequest]) (*connect.Response[SyncTripResponse], error) {
	return c.syncTrip.CallUnary(ctx, req)
}

// TripServiceClient calls the trip service.
type TripServiceClient struct {
	createTrip     *connect.Client[CreateTripRequest, CreateTripResponse]
	updateTrip     *connect.Client[UpdateTripRequest, UpdateTripResponse]
	listTrips      *connect.Client[ListTripsRequest, ListTripsResponse]
	getTrip        *connect.Client[GetTripRequest, GetTripResponse]
	deleteTrip     *connect.Client[DeleteTripRequest, DeleteTripResponse]
	getTripSummary *connect.Client[GetTripSummaryRequest, GetTripSummaryResponse]
	listRemote     *connect.Client[ListRemoteGroupsRequest, ListRemoteGroupsResponse]
}

// NewTripServiceClient returns a client for the service at baseURL.
func NewTripServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TripServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &TripServiceClient{
		createTrip:     connect.NewClient[CreateTripRequest, CreateTripResponse](httpClient, baseURL+TripServiceCreateTripProcedure, opts...),
		updateTrip:     connect.NewClient[UpdateTripRequest, UpdateTripResponse](httpClient, baseURL+TripServiceUpdateTripProcedure, opts...),
		listTrips:      connect.NewClient[ListTripsRequest, ListTripsResponse](httpClient, baseURL+TripServiceListTripsProcedure, opts...),
		getTrip:        connect.NewClient[GetTripRequest, GetTripResponse](httpClient, baseURL+TripServiceGetTripProcedure, opts...),
		deleteTrip:     connect.NewClient[DeleteTripRequest, DeleteTripResponse](httpClient, baseURL+TripServiceDeleteTripProcedure, opts...),
		getTripSummary: connect.NewClient[GetTripSummaryRequest, GetTripSummaryResponse](httpClient, baseURL+TripServiceGetTripSummaryProcedure, opts...),
		listRemote:     connect.NewClient[ListRemoteGroupsRequest, ListRemoteGroupsResponse](httpClient, baseURL+TripServiceListRemoteGroupsProcedure, opts...),
	}
}

func (c *TripServiceClient) CreateTrip(ctx context.Context, req *connect.Request[CreateTripRequest]) (*connect.Response[CreateTripResponse], error) {
	return c.createTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) UpdateTrip(ctx context.Context, req *connect.Request[UpdateTripRequest]) (*connect.Response[UpdateTripResponse], error) {
	return c.updateTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListTrips(ctx context.Context, req *connect.Request[ListTripsRequest]) (*connect.Response[ListTripsResponse], error) {
	return c.listTrips.CallUnary(ctx, req)
}

func (c *TripServiceClient) GetTrip(ctx context.Context, req *connect.Request[GetTripRequest]) (*connect.Response[GetTripResponse], error) {
	return c.getTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) DeleteTrip(ctx context.Context, req *connect.Request[DeleteTripRequest]) (*connect.Response[DeleteTripResponse], error) {
	return c.deleteTrip.CallUnary(ctx, req)
}

func (c *TripServiceClient) GetTripSummary(ctx context.Context, req *connect.Request[GetTripSummaryRequest]) (*connect.Response[GetTripSummaryResponse], error) {
	return c.getTripSummary.CallUnary(ctx, req)
}

func (c *TripServiceClient) ListRemoteGroups(ctx context.Context, req *connect.Request[ListRemoteGroupsRequest]) (*connect.Response[ListRemoteGroupsResponse], error) {
	return c.listRemote.CallUnary(ctx, req)
}

// CurrencyServiceClient calls the currency service.
type CurrencyServiceClient struct {
	convert      *connect.Client[ConvertRequest, ConvertResponse]
	convertBatch *connect.Client[ConvertBatchRequest, ConvertBatchResponse]
	currencies   *connect.Client[ListCurrenciesRequest, ListCurrenciesResponse]
}

// NewCurrencyServiceClient returns a client for the service at baseURL.
func NewCurrencyServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CurrencyServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &CurrencyServiceClient{
		convert:      connect.NewClient[ConvertRequest, ConvertResponse](httpClient, baseURL+CurrencyServiceConvertProcedure, opts...),
		convertBatch: connect.NewClient[ConvertBatchRequest, ConvertBatchResponse](httpClient, baseURL+CurrencyServiceConvertBatchProcedure, opts...),
		currencies:   connect.NewClient[ListCurrenciesRequest, ListCurrenciesResponse](httpClient, baseURL+CurrencyServiceListCurrenciesProcedure, opts...),
	}
}

func (c *CurrencyServiceClient) Convert(ctx context.Context, req *connect.Request[ConvertRequest]) (*connect.Response[ConvertResponse], error) {
	return c.convert.CallUnary(ctx, req)
}

func (c *CurrencyServiceClient) ConvertBatch(ctx context.Context, req *connect.Request[ConvertBatchRequest]) (*connect.Response[ConvertBatchResponse], error) {
	return c.convertBatch.CallUnary(ctx, req)
}

func (c *CurrencyServiceClient) ListCurrencies(ctx context.Context, req *connect.Request[ListCurrenciesRequest]) (*connect.Response[ListCurrenciesResponse], error) {
	return c.currencies.CallUnary(ctx, req)
}

// AuthServiceClient calls the auth service.
type AuthServiceClient struct {
	register          *connect.Client[RegisterRequest, RegisterResponse]
	login             *connect.Client[LoginRequest, LoginResponse]
	linkRemoteAccount *connect.Client[LinkRemoteAccountRequest, LinkRemoteAccountResponse]
	getCurrentUser    *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

// NewAuthServiceClient returns a client for the service at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &AuthServiceClient{
		register:          connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:             connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		linkRemoteAccount: connect.NewClient[LinkRemoteAccountRequest, LinkRemoteAccountResponse](httpClient, baseURL+AuthServiceLinkRemoteAccountProcedure, opts...),
		getCurrentUser:    connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthServiceClient) LinkRemoteAccount(ctx context.Context, req *connect.Request[LinkRemoteAccountRequest]) (*connect.Response[LinkRemoteAccountResponse], error) {
	return c.linkRemoteAccount.CallUnary(ctx, req)
}

func (c *AuthServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}
