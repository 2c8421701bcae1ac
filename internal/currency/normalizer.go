// Package currency converts amounts into the reporting currency.
//
// Rates come from a Provider and are cached per ordered pair for the lifetime
// of the Normalizer's RateCache. A failed lookup degrades to a rate of 1.0 and
// that fallback is cached too: it is not retried until the process restarts.
// Callers must tolerate arbitrarily stale rates.
package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/metrics"
)

// Places is the number of decimal places amounts are rounded to.
const Places = 2

// DefaultLookupTimeout bounds a single provider call.
const DefaultLookupTimeout = 10 * time.Second

var (
	// ErrRateUnavailable is returned by providers when no rate can be produced.
	// The Normalizer never surfaces it: it falls back to 1.0.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrUnknownCurrency is returned by ValidateCode for codes outside the ISO table.
	ErrUnknownCurrency = errors.New("unknown currency code")
)

// Provider returns spot exchange rates.
type Provider interface {
	SpotRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, from, to string) (decimal.Decimal, error)

// SpotRate calls f.
func (f ProviderFunc) SpotRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return f(ctx, from, to)
}

// Normalizer converts amounts between currencies using cached rates.
type Normalizer struct {
	provider  Provider
	cache     *RateCache
	reporting string
	timeout   time.Duration
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLookupTimeout overrides DefaultLookupTimeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(n *Normalizer) { n.timeout = d }
}

// NewNormalizer returns a Normalizer converting into the reporting currency.
// cache may be shared between Normalizers; nil allocates a private one.
func NewNormalizer(provider Provider, cache *RateCache, reporting string, opts ...Option) *Normalizer {
	if cache == nil {
		cache = NewRateCache()
	}
	n := &Normalizer{
		provider:  provider,
		cache:     cache,
		reporting: NormalizeCode(reporting),
		timeout:   DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Reporting returns the reporting currency code.
func (n *Normalizer) Reporting() string {
	return n.reporting
}

// Rate returns the factor converting one unit of from into to.
// Rate(x, x) is 1 without a lookup. A failed lookup yields 1, which is
// cached unless ctx itself was done.
func (n *Normalizer) Rate(ctx context.Context, from, to string) decimal.Decimal {
	pair := Pair{From: NormalizeCode(from), To: NormalizeCode(to)}
	if pair.From == pair.To {
		metrics.RateLookups.WithLabelValues("identity").Inc()
		return decimal.NewFromInt(1)
	}

	if rate, ok := n.cache.Get(pair); ok {
		metrics.RateLookups.WithLabelValues("hit").Inc()
		return rate
	}

	rate, err := n.lookup(ctx, pair)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; the provider was never really asked.
		slog.Debug("Exchange rate lookup canceled, not caching fallback",
			"from", pair.From,
			"to", pair.To,
			"error", err,
		)
		metrics.RateLookups.WithLabelValues("canceled").Inc()
		return decimal.NewFromInt(1)
	}
	if err != nil {
		slog.Warn("Exchange rate lookup failed, caching 1.0 fallback",
			"from", pair.From,
			"to", pair.To,
			"error", err,
		)
		metrics.RateLookups.WithLabelValues("fallback").Inc()
		rate = decimal.NewFromInt(1)
	} else {
		metrics.RateLookups.WithLabelValues("miss").Inc()
	}

	n.cache.Put(pair, rate)
	return rate
}

func (n *Normalizer) lookup(ctx context.Context, pair Pair) (decimal.Decimal, error) {
	if n.provider == nil {
		return decimal.Zero, fmt.Errorf("%w: no provider configured", ErrRateUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	rate, err := n.provider.SpotRate(ctx, pair.From, pair.To)
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", ErrRateUnavailable, rate)
	}
	return rate, nil
}

// Convert returns round(amount * Rate(from, to), 2).
func (n *Normalizer) Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	return Round(amount.Mul(n.Rate(ctx, from, to)))
}

// ToReporting converts amount from the given currency into the reporting currency.
func (n *Normalizer) ToReporting(ctx context.Context, amount decimal.Decimal, from string) decimal.Decimal {
	return n.Convert(ctx, amount, from, n.reporting)
}

// ConvertBatch returns the rate from base into each of targets, keyed by the
// normalized target code.
func (n *Normalizer) ConvertBatch(ctx context.Context, base string, targets []string) map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		code := NormalizeCode(target)
		if code == "" {
			continue
		}
		rates[code] = n.Rate(ctx, base, code)
	}
	return rates
}

// Round rounds to Places decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// NormalizeCode trims and upper-cases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks code against the ISO 4217 table.
func ValidateCode(code string) error {
	code = NormalizeCode(code)
	if code == "" || money.GetCurrency(code) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return nil
}
