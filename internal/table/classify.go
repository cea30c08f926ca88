package table

import (
	"strings"
	"time"
	"unicode"
)

// Raw is an untyped table straight from ingest: a header plus string rows.
type Raw struct {
	Header []string
	Rows   [][]string
}

// dateNameTokens are column-name tokens that suggest a date column.
var dateNameTokens = map[string]bool{
	"date": true, "time": true, "year": true, "yr": true,
	"day": true, "month": true, "dt": true,
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
}

// dateLayouts is the permissive calendar-date parser used for sampling.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006",
	"2006-01",
	"Jan 2006",
	"January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2-Jan-06",
	"Jan-06",
	"1/2/2006 15:04",
	"1/2/2006",
}

const dateSampleSize = 5

// Classify infers a kind for every column of raw and returns the coerced
// table: numeric columns parsed to float64, date and categorical columns
// normalized to strings. Empty cells are null. A column with no non-null
// values classifies categorical.
func Classify(raw *Raw) (*Table, error) {
	ncol := len(raw.Header)
	cols := make([]Column, ncol)
	for j := 0; j < ncol; j++ {
		vals := make([]string, len(raw.Rows))
		for r, row := range raw.Rows {
			if j < len(row) {
				vals[r] = strings.TrimSpace(row[j])
			}
		}
		cols[j] = classifyColumn(raw.Header[j], vals)
	}
	return New(cols)
}

func classifyColumn(name string, vals []string) Column {
	nonNull := 0
	for _, v := range vals {
		if v != "" {
			nonNull++
		}
	}

	switch {
	case nonNull == 0:
		// Vacuous numeric success would misclassify; keep categorical.
		return buildStringColumn(name, Categorical, vals)
	case isDateCandidate(name, vals):
		return buildStringColumn(name, Date, vals)
	}

	floats := make([]float64, len(vals))
	parsed := 0
	ok := make([]bool, len(vals))
	for i, v := range vals {
		if v == "" {
			continue
		}
		f, err := ParseNumeric(v)
		if err != nil {
			continue
		}
		floats[i] = f
		ok[i] = true
		parsed++
	}
	// Coerce only when no non-null value is lost.
	if parsed == nonNull {
		return Column{Name: name, Kind: Numeric, Floats: floats, Valid: ok}
	}
	return buildStringColumn(name, Categorical, vals)
}

func buildStringColumn(name string, kind Kind, vals []string) Column {
	strs := make([]string, len(vals))
	valid := make([]bool, len(vals))
	for i, v := range vals {
		if v == "" {
			continue
		}
		strs[i] = v
		valid[i] = true
	}
	return Column{Name: name, Kind: kind, Strings: strs, Valid: valid}
}

// isDateCandidate applies the two-signal decision: enough sampled values
// parse as calendar dates, or the column name looks date-like and a sampled
// value carries a month name (or is purely non-alphabetic).
func isDateCandidate(name string, vals []string) bool {
	sample := make([]string, 0, dateSampleSize)
	for _, v := range vals {
		if v == "" {
			continue
		}
		sample = append(sample, v)
		if len(sample) == dateSampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return false
	}

	parseSuccess := 0
	monthSignal := false
	for _, v := range sample {
		if parsesAsDate(v) {
			parseSuccess++
		}
		if containsMonthName(v) || !containsAlpha(v) {
			monthSignal = true
		}
	}
	if parseSuccess >= 3 {
		return true
	}
	return hasDateNameToken(name) && monthSignal
}

func parsesAsDate(v string) bool {
	for _, l := range dateLayouts {
		if _, err := time.Parse(l, v); err == nil {
			return true
		}
	}
	return false
}

func containsMonthName(v string) bool {
	lower := strings.ToLower(v)
	for _, m := range monthNames {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func containsAlpha(v string) bool {
	for _, r := range v {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// hasDateNameToken tokenizes the column name on non-alphanumeric runs and
// camelCase boundaries and checks for a date-ish token.
func hasDateNameToken(name string) bool {
	for _, tok := range splitNameTokens(name) {
		if dateNameTokens[strings.ToLower(tok)] {
			return true
		}
	}
	return false
}

func splitNameTokens(name string) []string {
	var toks []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return toks
}
