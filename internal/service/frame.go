package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Column dtypes reported by the service.
const (
	DTypeInt    = "int64"
	DTypeFloat  = "float64"
	DTypeBool   = "bool"
	DTypeObject = "object"
)

// nullTokens are the cell values read as missing.
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var boolTokens = map[string]bool{
	"True": true, "TRUE": true, "true": true,
	"False": false, "FALSE": false, "false": false,
}

var (
	errNoColumns = errors.New("no columns to parse from file")
	errNotUTF8   = errors.New("file is not valid UTF-8")
)

// Frame is a parsed CSV file with one inferred dtype per column.
type Frame struct {
	Header  []string
	Records [][]string
	Types   []string
}

// ReadFrame parses a CSV document. The first record is the header.
// Duplicate header names get a ".N" suffix. Short records are padded with
// missing values; long records are an error.
func ReadFrame(r io.Reader) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, errNotUTF8
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoColumns
	}
	if err != nil {
		return nil, err
	}

	f := &Frame{Header: uniqueNames(header)}
	width := len(f.Header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > width {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, width, len(rec))
		}
		for len(rec) < width {
			rec = append(rec, "")
		}
		f.Records = append(f.Records, rec)
	}

	f.Types = make([]string, width)
	for i := range f.Types {
		f.Types[i] = f.inferType(i)
	}
	return f, nil
}

func uniqueNames(header []string) []string {
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}
	out := make([]string, len(header))
	for i, h := range header {
		name := h
		if n, dup := seen[h]; dup {
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if !taken[name] {
					break
				}
			}
			seen[h] = n
			taken[name] = true
		} else {
			seen[h] = 0
		}
		out[i] = name
	}
	return out
}

// IsNull reports whether a cell is a missing value. Any spelling of NaN
// counts, with or without surrounding blanks.
func IsNull(cell string) bool {
	if _, ok := nullTokens[cell]; ok {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(cell), "nan")
}

func (f *Frame) inferType(col int) string {
	ints, floats, bools, nulls, values := true, true, true, 0, 0
	for _, rec := range f.Records {
		cell := rec[col]
		if IsNull(cell) {
			nulls++
			continue
		}
		values++
		v := strings.TrimSpace(cell)
		if ints {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				ints = false
			}
		}
		if floats && !ints {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				floats = false
			}
		}
		if bools {
			if _, ok := boolTokens[v]; !ok {
				bools = false
			}
		}
	}

	switch {
	case values == 0:
		return DTypeFloat
	case ints && nulls == 0:
		return DTypeInt
	case ints || floats:
		return DTypeFloat
	case bools && nulls == 0:
		return DTypeBool
	default:
		return DTypeObject
	}
}

// Rows is the number of data records.
func (f *Frame) Rows() int {
	return len(f.Records)
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, h := range f.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Numeric reports whether column col holds numbers.
func (f *Frame) Numeric(col int) bool {
	return f.Types[col] == DTypeInt || f.Types[col] == DTypeFloat
}

// NonNull counts the present values in column col.
func (f *Frame) NonNull(col int) int {
	n := 0
	for _, rec := range f.Records {
		if !IsNull(rec[col]) {
			n++
		}
	}
	return n
}

// Floats returns the present values of a numeric column.
func (f *Frame) Floats(col int) []float64 {
	out := make([]float64, 0, len(f.Records))
	for _, rec := range f.Records {
		if IsNull(rec[col]) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Values returns the present cells of column col in file order.
func (f *Frame) Values(col int) []string {
	out := make([]string, 0, len(f.Records))
	for _, rec := range f.Records {
		if !IsNull(rec[col]) {
			out = append(out, rec[col])
		}
	}
	return out
}

// Cell formats a value for display. Missing values show as NaN.
func (f *Frame) Cell(row, col int) string {
	v := f.Records[row][col]
	if IsNull(v) {
		return "NaN"
	}
	return v
}
