package cnb

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sig-0/cnbrates/storage/types"
)

// feedDateLayout is the CNB date format (DD.MM.YYYY, leading zeros optional)
const feedDateLayout = "2.1.2006"

var (
	// ErrParse is returned when a feed is structurally unparsable
	ErrParse = errors.New("unable to parse feed")

	errInvalidRate   = errors.New("invalid rate")
	errInvalidAmount = errors.New("invalid amount")
)

// YearlyFeed is the normalized content of the yearly (bulk) feed
type YearlyFeed struct {
	// Units are the lot sizes the raw rates were quoted per
	Units map[types.Currency]int

	// Rates are the per-unit rates, keyed by ISO date
	Rates types.DateRates

	// Skipped is the number of values dropped for being non-numeric
	Skipped int
}

// DailyFeed is the normalized content of the single-date feed
type DailyFeed struct {
	// Date is the ISO date the upstream actually has data for,
	// which may differ from the requested one
	Date string

	Units   map[types.Currency]int
	Rates   types.DateRates
	Skipped int
}

// column is a single header column of the yearly feed
type column struct {
	currency types.Currency
	amount   int
}

// ParseYearly parses the pipe-delimited yearly feed:
//
//	Date|1 AUD|1 BGN|...|100 JPY|...
//	04.01.2021|16,512|13,360|...|20,675|...
func ParseYearly(text string) (*YearlyFeed, error) {
	lines := splitLines(text)
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: yearly feed has %d line(s)", ErrParse, len(lines))
	}

	feed := &YearlyFeed{
		Units: make(map[types.Currency]int),
		Rates: make(types.DateRates),
	}

	header, ok := parseHeader(lines[0])
	if !ok {
		return nil, fmt.Errorf("%w: invalid yearly header %q", ErrParse, lines[0])
	}

	feed.addUnits(header)

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "|")

		date, err := parseFeedDate(fields[0])
		if err != nil {
			// The CNB repeats the header when the currency list changes mid-year
			if next, ok := parseHeader(line); ok {
				header = next
				feed.addUnits(header)

				continue
			}

			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		byCurrency := make(map[types.Currency]float64, len(fields)-1)

		for i, raw := range fields[1:] {
			if i >= len(header) || header[i].amount <= 0 {
				feed.Skipped++

				continue
			}

			rate, err := parseRate(raw)
			if err != nil {
				feed.Skipped++

				continue
			}

			byCurrency[header[i].currency] = rate / float64(header[i].amount)
		}

		feed.Rates[date] = byCurrency
	}

	return feed, nil
}

// ParseDaily parses the single-date feed:
//
//	04.01.2021 #1
//	Country|Currency|Amount|Code|Rate
//	Australia|dollar|1|AUD|16.512
func ParseDaily(text string) (*DailyFeed, error) {
	lines := splitLines(text)
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: daily feed has %d line(s)", ErrParse, len(lines))
	}

	dateToken, _, _ := strings.Cut(strings.TrimSpace(lines[0]), " ")

	date, err := parseFeedDate(dateToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	feed := &DailyFeed{
		Date:  date,
		Units: make(map[types.Currency]int),
		Rates: types.DateRates{
			date: make(map[types.Currency]float64),
		},
	}

	// lines[1] is the column header
	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 5 {
			feed.Skipped++

			continue
		}

		amount, err := parseAmount(fields[2])
		if err != nil {
			feed.Skipped++

			continue
		}

		rate, err := parseRate(fields[4])
		if err != nil {
			feed.Skipped++

			continue
		}

		currency := types.Currency(strings.TrimSpace(fields[3]))

		feed.Units[currency] = amount
		feed.Rates[date][currency] = rate / float64(amount)
	}

	return feed, nil
}

func (f *YearlyFeed) addUnits(header []column) {
	for _, col := range header {
		if col.amount > 0 {
			f.Units[col.currency] = col.amount
		}
	}
}

// parseHeader parses a header line ("label|<amount> <code>|...").
// Columns with an unusable amount are kept (positionally) with a zero amount
func parseHeader(line string) ([]column, bool) {
	fields := strings.Split(line, "|")
	if len(fields) < 2 {
		return nil, false
	}

	out := make([]column, 0, len(fields)-1)

	for _, field := range fields[1:] {
		amountRaw, code, found := strings.Cut(strings.TrimSpace(field), " ")
		if !found || strings.TrimSpace(code) == "" {
			return nil, false
		}

		amount, _ := parseAmount(amountRaw)

		out = append(out, column{
			currency: types.Currency(strings.TrimSpace(code)),
			amount:   amount,
		})
	}

	return out, true
}

// parseFeedDate converts DD.MM.YYYY into YYYY-MM-DD
func parseFeedDate(raw string) (string, error) {
	t, err := time.Parse(feedDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid feed date %q", raw)
	}

	return t.Format(types.DateLayout), nil
}

// FormatFeedDate converts YYYY-MM-DD into the DD.MM.YYYY form the CNB expects
func FormatFeedDate(date string) (string, error) {
	t, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", date)
	}

	return t.Format("02.01.2006"), nil
}

// parseRate parses a CNB rate, which uses a comma as the decimal separator
func parseRate(raw string) (float64, error) {
	s := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errInvalidRate, raw)
	}

	// ParseFloat accepts NaN and Inf spellings
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w %q", errInvalidRate, raw)
	}

	return f, nil
}

func parseAmount(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %q", errInvalidAmount, raw)
	}

	return n, nil
}

func splitLines(text string) []string {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}

	return strings.Split(text, "\n")
}
