package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDepthPercent(t *testing.T) {
	maxDepth := decimal.NewFromInt(50)

	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{name: "integer", raw: "8", wantKey: "8"},
		{name: "trailing zero", raw: "8.0", wantKey: "8"},
		{name: "fraction", raw: "2.5", wantKey: "2.5"},
		{name: "percent sign and spaces", raw: "  15% ", wantKey: "15"},
		{name: "upper bound", raw: "50", wantKey: "50"},
		{name: "zero", raw: "0", wantErr: true},
		{name: "negative", raw: "-3", wantErr: true},
		{name: "over max", raw: "50.01", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "only percent", raw: "%", wantErr: true},
		{name: "garbage", raw: "ten", wantErr: true},
		{name: "four decimals", raw: "0.0001", wantKey: "0.0001"},
		{name: "five decimals", raw: "0.00001", wantErr: true},
		{name: "exponent", raw: "1e1", wantErr: true},
		{name: "huge negative exponent", raw: "1e-50000000", wantErr: true},
		{name: "upper case exponent", raw: "5E0", wantErr: true},
		{name: "explicit plus", raw: "+5", wantErr: true},
		{name: "leading dot", raw: ".5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDepthPercent(tt.raw, maxDepth)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDepth) {
					t.Fatalf("ParseDepthPercent(%q) error = %v, want ErrInvalidDepth", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDepthPercent(%q) unexpected error: %v", tt.raw, err)
			}
			if got.Key() != tt.wantKey {
				t.Errorf("Key() = %q, want %q", got.Key(), tt.wantKey)
			}
		})
	}
}

func TestDepthPercentFraction(t *testing.T) {
	p := NewDepthPercent(decimal.NewFromInt(8))
	if !p.Fraction().Equal(decimal.RequireFromString("0.08")) {
		t.Errorf("Fraction() = %s, want 0.08", p.Fraction())
	}
}

func TestDepthPercentJSON(t *testing.T) {
	p := NewDepthPercent(decimal.RequireFromString("7.5"))
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"7.5"` {
		t.Fatalf("marshal = %s, want \"7.5\"", data)
	}

	var back DepthPercent
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Key() != "7.5" {
		t.Errorf("round trip key = %q", back.Key())
	}
}

func TestCacheKey(t *testing.T) {
	p, _ := ParseDepthPercent("5.0", decimal.NewFromInt(50))
	if got := CacheKey("SOL", p); got != "depth:SOL:5" {
		t.Errorf("CacheKey = %q", got)
	}
}

func TestIsInputError(t *testing.T) {
	if !IsInputError(ErrNotTradable) {
		t.Error("ErrNotTradable should be an input error")
	}
	if IsInputError(ErrRateLimited) {
		t.Error("ErrRateLimited should not be an input error")
	}
}
