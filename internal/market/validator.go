package market

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)

// DefaultExcluded lists base assets the bot refuses to analyse. The books are
// too deep for the band query to be meaningful.
var DefaultExcluded = []string{"BTC", "ETH", "WBTC", "WETH"}

// alwaysExcluded cannot be removed through configuration.
var alwaysExcluded = []string{"BTC", "ETH"}

// Lookup reports whether a trading pair is currently tradable.
type Lookup interface {
	Lookup(ctx context.Context, pair string) (domain.TradingPair, bool, error)
}

// Validator normalises raw user text into a Symbol and checks tradability.
type Validator struct {
	pairs    Lookup
	excluded map[string]struct{}
}

var _ Lookup = (*Registry)(nil)

// NewValidator creates a Validator. A nil excluded list uses DefaultExcluded;
// BTC and ETH are excluded regardless.
func NewValidator(pairs Lookup, excluded []string) *Validator {
	if excluded == nil {
		excluded = DefaultExcluded
	}
	set := make(map[string]struct{}, len(excluded)+len(alwaysExcluded))
	for _, s := range alwaysExcluded {
		set[s] = struct{}{}
	}
	for _, s := range excluded {
		set[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return &Validator{pairs: pairs, excluded: set}
}

// Normalize trims and uppercases raw and strips a trailing USDT quote so that
// "solusdt" and "SOL" name the same symbol. It performs no I/O.
func (v *Validator) Normalize(raw string) (domain.Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if base, ok := strings.CutSuffix(s, domain.QuoteAsset); ok && base != "" {
		s = base
	}
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("market: normalize %q: %w", raw, domain.ErrInvalidFormat)
	}
	if _, ok := v.excluded[s]; ok {
		return "", fmt.Errorf("market: normalize %q: %w", raw, domain.ErrUnsupportedAsset)
	}
	return domain.Symbol(s), nil
}

// Validate normalises raw and confirms the USDT pair is open for trading.
func (v *Validator) Validate(ctx context.Context, raw string) (domain.Symbol, error) {
	sym, err := v.Normalize(raw)
	if err != nil {
		return "", err
	}
	_, ok, err := v.pairs.Lookup(ctx, sym.Pair())
	if err != nil {
		return "", fmt.Errorf("market: validate %s: %w", sym, err)
	}
	if !ok {
		return "", fmt.Errorf("market: validate %s: %w", sym, domain.ErrNotTradable)
	}
	return sym, nil
}

// Excluded reports whether the base asset is on the exclusion list.
func (v *Validator) Excluded(symbol string) bool {
	_, ok := v.excluded[strings.ToUpper(symbol)]
	return ok
}
