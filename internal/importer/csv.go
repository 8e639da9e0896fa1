package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// column identifies a Row field in an import file.
type column int

const (
	colCode column = iota
	colDescription
	colClassification
	colQty
	colCarton
)

// headerAliases maps normalized header names to columns.
var headerAliases = map[string]column{
	"code":           colCode,
	"jan":            colCode,
	"jan_code":       colCode,
	"barcode":        colCode,
	"description":    colDescription,
	"name":           colDescription,
	"title":          colDescription,
	"classification": colClassification,
	"hs_code":        colClassification,
	"class":          colClassification,
	"qty":            colQty,
	"quantity":       colQty,
	"carton":         colCarton,
	"carton_id":      colCarton,
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ReadCSV parses an import file. The first record is the header; unknown
// columns are ignored. Code and qty columns are required, and qty must be
// a non-negative integer.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: errors.New("empty file")}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	index := make(map[column]int)
	for i, h := range header {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	if _, ok := index[colCode]; !ok {
		return nil, &ParseError{Line: 1, Err: errors.New("missing code column")}
	}
	if _, ok := index[colQty]; !ok {
		return nil, &ParseError{Line: 1, Err: errors.New("missing qty column")}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &ParseError{Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)

		get := func(c column) string {
			i, ok := index[c]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		if isBlank(rec) {
			continue
		}

		row := Row{
			Line:           line,
			Code:           get(colCode),
			Description:    get(colDescription),
			Classification: get(colClassification),
			CartonID:       get(colCarton),
		}
		if row.Code == "" {
			return nil, &ParseError{Line: line, Column: "code", Err: errors.New("empty")}
		}

		raw := get(colQty)
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &ParseError{Line: line, Column: "qty", Err: fmt.Errorf("%q is not an integer", raw)}
		}
		if qty < 0 {
			return nil, &ParseError{Line: line, Column: "qty", Err: fmt.Errorf("%d is negative", qty)}
		}
		row.Qty = qty

		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
