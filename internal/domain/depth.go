package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// depthPattern admits plain decimals with at most four fractional digits.
// Exponent notation is rejected.
var depthPattern = regexp.MustCompile(`^[0-9]{1,6}(\.[0-9]{1,4})?$`)

// DepthPercent is the half-width of the analysed band, in percent of the
// reference price. A value of 8 means +/-8%.
type DepthPercent struct {
	value decimal.Decimal
}

// NewDepthPercent wraps d without range checks. Use ParseDepthPercent for
// user input.
func NewDepthPercent(d decimal.Decimal) DepthPercent {
	return DepthPercent{value: d}
}

// ParseDepthPercent parses user input such as "8", " 8.5 " or "8%" and checks
// it lies in (0, maxDepth]. Only plain decimals with up to four fractional
// digits are accepted. Every failure wraps ErrInvalidDepth.
func ParseDepthPercent(raw string, maxDepth decimal.Decimal) (DepthPercent, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return DepthPercent{}, fmt.Errorf("%w: empty value", ErrInvalidDepth)
	}
	if strings.HasPrefix(s, "-") {
		return DepthPercent{}, fmt.Errorf("%w: must be greater than 0", ErrInvalidDepth)
	}
	if !depthPattern.MatchString(s) {
		return DepthPercent{}, fmt.Errorf("%w: %q is not a plain number with up to 4 decimals", ErrInvalidDepth, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return DepthPercent{}, fmt.Errorf("%w: %q is not a number", ErrInvalidDepth, raw)
	}
	if !d.IsPositive() {
		return DepthPercent{}, fmt.Errorf("%w: must be greater than 0", ErrInvalidDepth)
	}
	if d.GreaterThan(maxDepth) {
		return DepthPercent{}, fmt.Errorf("%w: must not exceed %s%%", ErrInvalidDepth, maxDepth.String())
	}
	return DepthPercent{value: d}, nil
}

// Decimal returns the percentage as a decimal.
func (p DepthPercent) Decimal() decimal.Decimal {
	return p.value
}

// Fraction returns the percentage divided by 100.
func (p DepthPercent) Fraction() decimal.Decimal {
	return p.value.Div(decimal.NewFromInt(100))
}

// Key is the canonical text form used in cache keys; "8.0" and "8" share it.
func (p DepthPercent) Key() string {
	return p.value.String()
}

func (p DepthPercent) String() string {
	return p.value.String()
}

func (p DepthPercent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value.String())
}

func (p *DepthPercent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	p.value = d
	return nil
}
