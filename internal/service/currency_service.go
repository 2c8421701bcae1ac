package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/pkg/api"
)

// CurrencyService implements the Connect CurrencyService.
type CurrencyService struct {
	normalizer *currency.Normalizer
	directory  ledger.Directory
}

var _ api.CurrencyServiceHandler = (*CurrencyService)(nil)

// NewCurrencyService creates a CurrencyService. directory may be nil, in
// which case ListCurrencies fails with FailedPrecondition.
func NewCurrencyService(normalizer *currency.Normalizer, directory ledger.Directory) *CurrencyService {
	return &CurrencyService{normalizer: normalizer, directory: directory}
}

func validCode(code string) (string, error) {
	code = currency.NormalizeCode(code)
	if err := currency.ValidateCode(code); err != nil {
		return "", err
	}
	return code, nil
}

// Convert converts an amount, into the reporting currency unless To is set.
func (s *CurrencyService) Convert(ctx context.Context, req *connect.Request[api.ConvertRequest]) (*connect.Response[api.ConvertResponse], error) {
	slog.Info("Convert request received", "from", req.Msg.From, "to", req.Msg.To)

	from, err := validCode(req.Msg.From)
	if err != nil {
		return nil, toConnectError(err)
	}
	to := s.normalizer.Reporting()
	if req.Msg.To != "" {
		if to, err = validCode(req.Msg.To); err != nil {
			return nil, toConnectError(err)
		}
	}

	return connect.NewResponse(&api.ConvertResponse{
		Amount: s.normalizer.Convert(ctx, req.Msg.Amount, from, to),
		Rate:   s.normalizer.Rate(ctx, from, to),
		To:     to,
	}), nil
}

// ConvertBatch returns the rate from Base to each target.
func (s *CurrencyService) ConvertBatch(ctx context.Context, req *connect.Request[api.ConvertBatchRequest]) (*connect.Response[api.ConvertBatchResponse], error) {
	slog.Info("ConvertBatch request received", "base", req.Msg.Base, "targets", len(req.Msg.Targets))

	base, err := validCode(req.Msg.Base)
	if err != nil {
		return nil, toConnectError(err)
	}
	if len(req.Msg.Targets) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("at least one target currency is required"))
	}
	targets := make([]string, 0, len(req.Msg.Targets))
	for _, t := range req.Msg.Targets {
		code, err := validCode(t)
		if err != nil {
			return nil, toConnectError(err)
		}
		targets = append(targets, code)
	}

	return connect.NewResponse(&api.ConvertBatchResponse{
		Base:  base,
		Rates: s.normalizer.ConvertBatch(ctx, base, targets),
	}), nil
}

// ListCurrencies returns the currencies the remote ledger accepts, limited to
// ISO 4217 codes and sorted by code.
func (s *CurrencyService) ListCurrencies(ctx context.Context, req *connect.Request[api.ListCurrenciesRequest]) (*connect.Response[api.ListCurrenciesResponse], error) {
	slog.Info("ListCurrencies request received")

	if s.directory == nil {
		return nil, toConnectError(errNoLedger)
	}
	remote, err := s.directory.ListCurrencies(ctx)
	if err != nil {
		slog.Error("ListCurrencies failed", "error", err)
		return nil, toConnectError(fmt.Errorf("failed to list remote currencies: %w", err))
	}

	seen := make(map[string]bool, len(remote))
	resp := &api.ListCurrenciesResponse{Currencies: make([]api.Currency, 0, len(remote))}
	for _, c := range remote {
		code, err := validCode(c.Code)
		if err != nil || seen[code] {
			continue
		}
		seen[code] = true
		resp.Currencies = append(resp.Currencies, api.Currency{Code: code, Unit: c.Unit})
	}
	sort.Slice(resp.Currencies, func(i, j int) bool {
		return resp.Currencies[i].Code < resp.Currencies[j].Code
	})

	slog.Info("ListCurrencies successful", "received", len(remote), "count", len(resp.Currencies))
	return connect.NewResponse(resp), nil
}
