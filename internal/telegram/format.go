package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// markdownV2Special lists every character MarkdownV2 requires escaping
// outside of entities.
const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes text for use as plain MarkdownV2 content.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range text {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func bold(s string) string { return "*" + EscapeMarkdownV2(s) + "*" }

var medals = [...]string{"🥇", "🥈", "🥉"}

// FormatReport renders a report as a MarkdownV2 message. Clusters are listed
// highest price first on both sides, with the three largest by volume
// marked with medals.
func FormatReport(rep domain.Report, topN int, now time.Time) string {
	res := rep.Result
	var b strings.Builder

	b.WriteString(bold(res.Symbol.Pair()))
	b.WriteString("\n\n")
	b.WriteString(EscapeMarkdownV2(fmt.Sprintf("Top %d limits of %s%% depth", topN, res.Depth)))
	b.WriteString("\n\n")

	b.WriteString(bold("ASKS"))
	b.WriteString("\n")
	b.WriteString(formatSide(res.Asks))
	b.WriteString("\n\n")

	b.WriteString(bold("Last price"))
	b.WriteString(" ")
	b.WriteString(EscapeMarkdownV2(res.ReferencePrice.String()))
	b.WriteString("\n\n")

	b.WriteString(bold("BIDS"))
	b.WriteString("\n")
	b.WriteString(formatSide(res.Bids))
	b.WriteString("\n\n")

	b.WriteString(EscapeMarkdownV2(fmt.Sprintf("Volume in band: asks %s, bids %s",
		CompactNumber(res.AskVolume), CompactNumber(res.BidVolume))))

	for _, w := range res.Warnings {
		b.WriteString("\n")
		b.WriteString(EscapeMarkdownV2("⚠️ " + warningText(w)))
	}

	if rep.Cached {
		left := rep.ExpiresAt.Sub(now).Round(time.Second)
		if left < 0 {
			left = 0
		}
		b.WriteString("\n")
		b.WriteString("_" + EscapeMarkdownV2(fmt.Sprintf("cached, refreshes in %s", left)) + "_")
	}

	return b.String()
}

func formatSide(levels []domain.AggregatedLevel) string {
	if len(levels) == 0 {
		return EscapeMarkdownV2("no orders in range")
	}

	type line struct {
		price decimal.Decimal
		text  string
	}
	lines := make([]line, 0, len(levels))
	for rank, lvl := range levels {
		text := fmt.Sprintf("%s  •  %s", lvl.Price.String(), CompactNumber(lvl.Volume))
		if rank < len(medals) {
			text += " " + medals[rank]
		}
		lines = append(lines, line{price: lvl.Price, text: text})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].price.GreaterThan(lines[j].price) })

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = EscapeMarkdownV2(l.text)
	}
	return strings.Join(out, "\n")
}

func warningText(code string) string {
	switch code {
	case domain.WarningBidsTruncated:
		return "bid side deeper than the exchange snapshot; totals may be understated"
	case domain.WarningAsksTruncated:
		return "ask side deeper than the exchange snapshot; totals may be understated"
	default:
		return code
	}
}

var compactUnits = []struct {
	threshold decimal.Decimal
	suffix    string
}{
	{decimal.NewFromInt(1_000_000_000), "B"},
	{decimal.NewFromInt(1_000_000), "M"},
	{decimal.NewFromInt(1_000), "K"},
}

// CompactNumber renders v with two decimals and a K/M/B suffix, e.g.
// 1234567 as "1.23M". Trailing zeros are dropped.
func CompactNumber(v decimal.Decimal) string {
	abs := v.Abs()
	for _, u := range compactUnits {
		if abs.GreaterThanOrEqual(u.threshold) {
			return v.Div(u.threshold).Round(2).String() + u.suffix
		}
	}
	return v.Round(2).String()
}
