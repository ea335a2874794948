package core

// csvimport.go turns a CSV export of the reject list into BatchItems for
// IngestBatch.
//
// Headers are matched case-insensitively with spaces treated as underscores,
// so "Contact No" maps to contact_no. Unknown columns are ignored. Empty cells
// become null. A row whose id or proposal_date cannot be parsed becomes an
// invalid item and is counted as skipped by the ingester.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSV import errors.
var (
	ErrEmptyFile           = errors.New("empty file")
	ErrNoRecognizedColumns = errors.New("invalid csv: no recognized columns")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// HeaderIndex maps normalized column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex normalizes a header row: trimmed, lowercased, inner spaces
// replaced with underscores.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		key = strings.Join(strings.Fields(key), "_")
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// CleanCell trims a cell and unwraps the ="..." formula form spreadsheets use
// to keep leading zeros. Invalid UTF-8 becomes U+FFFD.
func CleanCell(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// ReadCSV reads every data row of r. Blank rows are dropped. Naive dates are
// interpreted in loc.
func ReadCSV(r io.Reader, loc *time.Location) ([]BatchItem, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}
	idx := MakeHeaderIndex(header)
	if !recognizesAny(idx) {
		return nil, ErrNoRecognizedColumns
	}

	var items []BatchItem
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return items, fmt.Errorf("invalid csv at line %d: %w", line, err)
		}
		if isEmptyRow(row) {
			continue
		}
		f, ferr := fieldsFromRow(row, idx, loc)
		items = append(items, BatchItem{Fields: f, Invalid: ferr})
	}
	return items, nil
}

func recognizesAny(idx HeaderIndex) bool {
	for _, name := range []string{"id", "proposal_date"} {
		if _, ok := idx[name]; ok {
			return true
		}
	}
	for _, spec := range FieldSpecs {
		if _, ok := idx[spec.Name]; ok {
			return true
		}
	}
	return false
}

func fieldsFromRow(row []string, idx HeaderIndex, loc *time.Location) (Fields, error) {
	var f Fields
	var errs ValidationErrors

	cell := func(name string) (string, bool) {
		pos, ok := idx[name]
		if !ok || pos >= len(row) {
			return "", false
		}
		return CleanCell(row[pos]), true
	}

	if v, ok := cell("id"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		switch {
		case err != nil:
			errs.Add("id", msgNotAnInteger)
		case id < 1:
			errs.Add("id", MsgIDTooSmall)
		default:
			f.ID = Some(id)
		}
	}

	for _, spec := range FieldSpecs {
		v, ok := cell(spec.Name)
		if !ok {
			continue
		}
		if v == "" {
			*spec.Text(&f) = Null[string]()
		} else {
			*spec.Text(&f) = Some(v)
		}
	}

	if v, ok := cell("proposal_date"); ok {
		if v == "" {
			f.ProposalDate = Null[time.Time]()
		} else if t, parsed := ParseDateTime(v, loc); parsed {
			f.ProposalDate = Some(t)
		} else {
			errs.Add("proposal_date", msgBadDatetime)
		}
	}

	return f, errs.Err()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
