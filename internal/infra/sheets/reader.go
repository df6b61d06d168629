// internal/infra/sheets/reader.go
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// SheetReader reads the registration form's response sheet with a service
// account. It implements registration.Source.
type SheetReader struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
}

// NewSheetReader authenticates with the service account key at
// credentialsFile. Only the read-only spreadsheets scope is requested.
func NewSheetReader(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetReader, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return &SheetReader{
		values:        gsheets.NewSpreadsheetsValuesService(svc),
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// FetchRows returns every row of the sheet, header included. Trailing empty
// cells are dropped by the API, so rows may be shorter than the header.
func (r *SheetReader) FetchRows(ctx context.Context) ([][]string, error) {
	resp, err := r.values.Get(r.spreadsheetID, r.sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading %s!%s: %w", r.spreadsheetID, r.sheetName, err)
	}
	return toCells(resp.Values), nil
}

func toCells(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				cells[j] = s
			} else {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows
}
