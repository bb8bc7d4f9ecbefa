package reports

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// SheetsWriter replaces whole tabs of one Google spreadsheet.
type SheetsWriter struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

// NewSheetsWriter authenticates with a service account key file.
func NewSheetsWriter(ctx context.Context, serviceAccountJSONPath, spreadsheetID string) (*SheetsWriter, error) {
	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetsWriter{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func (w *SheetsWriter) SpreadsheetID() string { return w.spreadsheetID }

func (w *SheetsWriter) ensureSheet(ctx context.Context, title string) error {
	ss, err := w.srv.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}
	req := &sheetsv4.BatchUpdateSpreadsheetRequest{Requests: []*sheetsv4.Request{{
		AddSheet: &sheetsv4.AddSheetRequest{Properties: &sheetsv4.SheetProperties{Title: title}},
	}}}
	_, err = w.srv.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	return err
}

// ReplaceSheet creates the tab if needed, clears it and writes rows from A1.
func (w *SheetsWriter) ReplaceSheet(ctx context.Context, title string, rows [][]interface{}) error {
	if err := w.ensureSheet(ctx, title); err != nil {
		return fmt.Errorf("prepare sheet %q: %w", title, err)
	}
	rng := fmt.Sprintf("'%s'!A:Z", title)
	if _, err := w.srv.Spreadsheets.Values.Clear(w.spreadsheetID, rng, &sheetsv4.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %q: %w", title, err)
	}
	vr := &sheetsv4.ValueRange{Values: rows}
	_, err := w.srv.Spreadsheets.Values.Update(w.spreadsheetID, fmt.Sprintf("'%s'!A1", title), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write sheet %q: %w", title, err)
	}
	return nil
}
