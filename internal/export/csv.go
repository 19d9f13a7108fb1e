// Package export renders stored events as CSV for bulk download and BI
// tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/query"
)

// Columns is the fixed column order of the bulk CSV export.
var Columns = []string{
	"id", "user", "machine", "event", "reason", "admin", "timestamp", "expires",
	"received_at", "client_version", "platform", "cf_network_version", "os_version",
	"delayed", "created_at", "custom_data",
}

// WriteEvents writes a header row followed by one row per event in Columns
// order.
func WriteEvents(w io.Writer, events []model.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	record := make([]string, len(Columns))
	for _, e := range events {
		for i, col := range Columns {
			cell, err := Cell(query.Value(e, col))
			if err != nil {
				return fmt.Errorf("event %s column %s: %w", e.ID, col, err)
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRows writes projected analytics rows using fields as both the header
// and the column order.
func WriteRows(w io.Writer, fields []query.Field, rows []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(query.Names(fields)); err != nil {
		return err
	}
	record := make([]string, len(fields))
	for _, row := range rows {
		for i, f := range fields {
			cell, err := Cell(row[f.Name])
			if err != nil {
				return fmt.Errorf("column %s: %w", f.Name, err)
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Cell formats one value for a CSV cell. Null becomes the empty string and
// objects are embedded as compact JSON.
func Cell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case *string:
		if x == nil {
			return "", nil
		}
		return *x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
