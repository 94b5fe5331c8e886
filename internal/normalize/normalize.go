package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ScanRunner/internal/domain/models"
)

// Context supplies the defaults a raw record may omit.
type Context struct {
	Symbol    string
	Date      string // canonical YYYY-MM-DD
	ScannerID string
	Weight    float64
}

// Table is the row/table return shape: named columns plus positional rows.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// Normalize converts one raw scanner return value into canonical signal
// records. It is pure and idempotent: identical input yields identical
// output. A nil or empty result is an empty list, not an error. An error
// return means the shape could not be mapped at all; callers fall back to
// Opaque rather than discarding the value.
func Normalize(raw interface{}, c Context) ([]models.ScannerSignal, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []models.ScannerSignal:
		out := make([]models.ScannerSignal, 0, len(v))
		for _, s := range v {
			out = append(out, canonicalizeSignal(s, c))
		}
		return out, nil
	case models.ScannerSignal:
		return []models.ScannerSignal{canonicalizeSignal(v, c)}, nil
	case []map[string]interface{}:
		out := make([]models.ScannerSignal, 0, len(v))
		for _, rec := range v {
			out = append(out, fromRecord(rec, c))
		}
		return out, nil
	case map[string]interface{}:
		if cols, ok := asColumnar(v); ok {
			return fromColumnar(cols, c)
		}
		return []models.ScannerSignal{fromRecord(v, c)}, nil
	case map[string][]interface{}:
		return fromColumnar(v, c)
	case Table:
		return fromTable(v, c)
	case *Table:
		if v == nil {
			return nil, nil
		}
		return fromTable(*v, c)
	case []interface{}:
		out := make([]models.ScannerSignal, 0, len(v))
		for _, el := range v {
			sigs, err := Normalize(el, c)
			if err != nil {
				out = append(out, Opaque(el, c))
				continue
			}
			out = append(out, sigs...)
		}
		return out, nil
	case string:
		return fromText(v, c), nil
	default:
		return nil, fmt.Errorf("unsupported result shape %T", raw)
	}
}

// Opaque wraps an unconvertible raw value as a single record so it is
// retained instead of discarded.
func Opaque(raw interface{}, c Context) models.ScannerSignal {
	return models.ScannerSignal{
		Ticker:     c.Symbol,
		Date:       c.Date,
		ScannerID:  c.ScannerID,
		Data:       map[string]interface{}{"raw": fmt.Sprintf("%v", raw)},
		Confidence: 1.0,
		Weight:     c.Weight,
	}
}

// Dedupe enforces (ticker, date) uniqueness within one scanner's list,
// keeping the first occurrence.
func Dedupe(signals []models.ScannerSignal) []models.ScannerSignal {
	seen := make(map[models.SignalKey]struct{}, len(signals))
	out := signals[:0]
	for _, s := range signals {
		k := s.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func canonicalizeSignal(s models.ScannerSignal, c Context) models.ScannerSignal {
	if s.Ticker == "" {
		s.Ticker = c.Symbol
	}
	if s.Date == "" {
		s.Date = c.Date
	}
	if s.ScannerID == "" {
		s.ScannerID = c.ScannerID
	}
	if s.Weight == 0 {
		s.Weight = c.Weight
	}
	if s.Confidence <= 0 {
		// Scanners that omit confidence default to full confidence.
		s.Confidence = 1.0
	} else if s.Confidence > 1 {
		s.Confidence = 1.0
	}
	if s.Data == nil {
		s.Data = map[string]interface{}{}
	}
	return s
}

func fromRecord(rec map[string]interface{}, c Context) models.ScannerSignal {
	s := models.ScannerSignal{
		ScannerID:  c.ScannerID,
		Data:       make(map[string]interface{}, len(rec)),
		Confidence: 1.0,
		Weight:     c.Weight,
	}
	for k, v := range rec {
		switch strings.ToLower(k) {
		case "ticker", "symbol":
			if sv, ok := v.(string); ok && sv != "" {
				s.Ticker = sv
				continue
			}
		case "date", "day", "timestamp":
			if d, ok := asDate(v); ok {
				s.Date = d
				continue
			}
		case "confidence":
			if f, ok := asFloat(v); ok {
				s.Confidence = clamp01(f)
				continue
			}
		}
		s.Data[strings.ToLower(k)] = v
	}
	if s.Ticker == "" {
		s.Ticker = c.Symbol
	}
	if s.Date == "" {
		s.Date = c.Date
	}
	return s
}

// asColumnar reports whether every value of the map is a slice, which
// means the map is field -> column rather than a single record.
func asColumnar(m map[string]interface{}) (map[string][]interface{}, bool) {
	if len(m) == 0 {
		return nil, false
	}
	cols := make(map[string][]interface{}, len(m))
	for k, v := range m {
		s, ok := v.([]interface{})
		if !ok {
			return nil, false
		}
		cols[k] = s
	}
	return cols, true
}

func fromColumnar(cols map[string][]interface{}, c Context) ([]models.ScannerSignal, error) {
	n := -1
	for k, col := range cols {
		if n == -1 {
			n = len(col)
			continue
		}
		if len(col) != n {
			return nil, fmt.Errorf("columnar result: column %q has %d values, want %d", k, len(col), n)
		}
	}
	if n <= 0 {
		return nil, nil
	}
	// Stable column order so output is deterministic.
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]models.ScannerSignal, 0, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]interface{}, len(names))
		for _, k := range names {
			rec[k] = cols[k][i]
		}
		out = append(out, fromRecord(rec, c))
	}
	return out, nil
}

func fromTable(t Table, c Context) ([]models.ScannerSignal, error) {
	out := make([]models.ScannerSignal, 0, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("table result: row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		rec := make(map[string]interface{}, len(row))
		for j, col := range t.Columns {
			rec[col] = row[j]
		}
		out = append(out, fromRecord(rec, c))
	}
	return out, nil
}

// fromText best-effort parses free-form output. Lines holding key=value or
// "key: value" pairs become one record each; anything else collapses into
// a single opaque record.
func fromText(text string, c Context) []models.ScannerSignal {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	var out []models.ScannerSignal
	for _, line := range strings.Split(trimmed, "\n") {
		rec := parseLine(line)
		if rec == nil {
			continue
		}
		out = append(out, fromRecord(rec, c))
	}
	if len(out) == 0 {
		return []models.ScannerSignal{Opaque(trimmed, c)}
	}
	return out
}

func parseLine(line string) map[string]interface{} {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	rec := map[string]interface{}{}
	for _, tok := range strings.Fields(line) {
		var k, v string
		if i := strings.Index(tok, "="); i > 0 {
			k, v = tok[:i], tok[i+1:]
		} else if i := strings.Index(tok, ":"); i > 0 {
			k, v = tok[:i], tok[i+1:]
		} else {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rec[k] = f
		} else {
			rec[k] = v
		}
	}
	if len(rec) == 0 {
		return nil
	}
	return rec
}

func asDate(v interface{}) (string, bool) {
	switch d := v.(type) {
	case string:
		for _, layout := range []string{models.DateLayout, time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, d); err == nil {
				return t.Format(models.DateLayout), true
			}
		}
		return "", false
	case time.Time:
		return d.Format(models.DateLayout), true
	default:
		return "", false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	case int64:
		return float64(f), true
	case string:
		parsed, err := strconv.ParseFloat(f, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
