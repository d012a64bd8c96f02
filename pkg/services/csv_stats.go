package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// csvPreviewRows is how many rows the prompt data summary shows.
const csvPreviewRows = 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// missingMarkers are cell values counted as missing, besides the empty string.
var missingMarkers = map[string]bool{
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// DecodeCSV returns data as UTF-8 text and the encoding it was read as.
// A UTF-8 byte order mark is stripped. Bytes that are not valid UTF-8 are read
// as Shift-JIS when allowed.
func DecodeCSV(data []byte, allowed func(encoding string) bool) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		if !allowed(models.EncodingUTF8) {
			return "", "", fmt.Errorf("%w: UTF-8 uploads are not allowed", apperrors.ErrInvalidInput)
		}
		return string(data), models.EncodingUTF8, nil
	}
	if !allowed(models.EncodingShiftJIS) {
		return "", "", fmt.Errorf("%w: file is not valid UTF-8", apperrors.ErrInvalidInput)
	}

	decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return "", "", fmt.Errorf("%w: file is neither UTF-8 nor Shift-JIS", apperrors.ErrInvalidInput)
	}
	return string(decoded), models.EncodingShiftJIS, nil
}

// CSVTable is a parsed CSV file: a header row and data rows padded to its width.
type CSVTable struct {
	Columns []string
	Rows    [][]string
}

// ParseCSV reads text into a table. The first record is the header.
func ParseCSV(text string) (*CSVTable, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: CSV file is empty", apperrors.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}

	table := &CSVTable{Columns: make([]string, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		table.Columns[i] = h
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
		}
		row := make([]string, len(table.Columns))
		copy(row, record)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (t *CSVTable) column(i int) []string {
	values := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		values[r] = strings.TrimSpace(row[i])
	}
	return values
}

func isMissing(v string) bool {
	return v == "" || missingMarkers[strings.ToLower(v)]
}

// Statistics describes the table: dtypes, missing values and a numeric summary.
func (t *CSVTable) Statistics() *models.CSVStatistics {
	stats := &models.CSVStatistics{
		RowCount:       len(t.Rows),
		ColumnCount:    len(t.Columns),
		Columns:        t.Columns,
		DTypes:         make(map[string]string, len(t.Columns)),
		MissingValues:  make(map[string]int, len(t.Columns)),
		NumericSummary: make(map[string]models.NumericSummary),
	}

	for i, name := range t.Columns {
		values := t.column(i)
		present := make([]string, 0, len(values))
		for _, v := range values {
			if !isMissing(v) {
				present = append(present, v)
			}
		}

		dtype := inferDType(present, len(present) < len(values))
		stats.DTypes[name] = dtype
		stats.MissingValues[name] = len(values) - len(present)
		if dtype == models.DTypeInt || dtype == models.DTypeFloat {
			stats.NumericSummary[name] = summarize(parseFloats(present))
		}
	}
	return stats
}

// inferDType picks the narrowest type every present value parses as. Integer
// columns with gaps are reported as float64, as pandas does.
func inferDType(present []string, hasMissing bool) string {
	if len(present) == 0 {
		return models.DTypeObject
	}
	switch {
	case all(present, isInt):
		if hasMissing {
			return models.DTypeFloat
		}
		return models.DTypeInt
	case all(present, isFloat):
		return models.DTypeFloat
	case all(present, isBool):
		return models.DTypeBool
	case all(present, isDatetime):
		return models.DTypeDatetime
	default:
		return models.DTypeObject
	}
}

func all(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	return err == nil
}

func isBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false":
		return true
	}
	return false
}

func isDatetime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func parseFloats(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		if err == nil {
			out = append(out, f)
		}
	}
	return out
}

// summarize computes count, mean, sample std, min, quartiles and max.
// Quartiles interpolate linearly between the closest ranks.
func summarize(values []float64) models.NumericSummary {
	n := len(values)
	if n == 0 {
		return models.NumericSummary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var std float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return models.NumericSummary{
		Count: n,
		Mean:  mean,
		Std:   std,
		Min:   sorted[0],
		P25:   percentile(sorted, 0.25),
		P50:   percentile(sorted, 0.50),
		P75:   percentile(sorted, 0.75),
		Max:   sorted[n-1],
	}
}

func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// DataSummary renders the text given to the analysis prompt: the first rows,
// numeric statistics, and unique-value counts of the other columns.
func (t *CSVTable) DataSummary(stats *models.CSVStatistics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rows: %d, Columns: %d\n\n", stats.RowCount, stats.ColumnCount)

	fmt.Fprintf(&b, "First %d rows:\n", min(csvPreviewRows, len(t.Rows)))
	w := csv.NewWriter(&b)
	_ = w.Write(t.Columns)
	for _, row := range t.Rows[:min(csvPreviewRows, len(t.Rows))] {
		_ = w.Write(row)
	}
	w.Flush()

	if len(stats.NumericSummary) > 0 {
		b.WriteString("\nNumeric columns:\n")
		for _, name := range t.Columns {
			s, ok := stats.NumericSummary[name]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: count=%d mean=%.4g std=%.4g min=%.4g 25%%=%.4g 50%%=%.4g 75%%=%.4g max=%.4g\n",
				name, s.Count, s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max)
		}
	}

	var categorical []string
	for i, name := range t.Columns {
		if _, numeric := stats.NumericSummary[name]; numeric {
			continue
		}
		unique := make(map[string]struct{})
		for _, v := range t.column(i) {
			if !isMissing(v) {
				unique[v] = struct{}{}
			}
		}
		categorical = append(categorical, fmt.Sprintf("- %s: %d unique values", name, len(unique)))
	}
	if len(categorical) > 0 {
		b.WriteString("\nOther columns:\n")
		b.WriteString(strings.Join(categorical, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
