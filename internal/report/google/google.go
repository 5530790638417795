// Package google exports monthly stats to a Google Sheets report using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "andvaranaut/internal/report"
	"andvaranaut/internal/storage"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	statsSheet    string
}

var _ ports.StatsExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials
// (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS). Optional: GOOGLE_STATS_SHEET_NAME
// (default "MonthlyStats").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	statsSheet := strings.TrimSpace(os.Getenv("GOOGLE_STATS_SHEET_NAME"))
	if statsSheet == "" {
		statsSheet = "MonthlyStats"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		statsSheet:    statsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// ExportMonthlyStats appends one row per month to the stats sheet.
func (c *Client) ExportMonthlyStats(ctx context.Context, username string, stats []storage.MonthlyStat) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(stats) == 0 {
		return nil
	}

	values := make([][]any, 0, len(stats))
	for _, s := range stats {
		values = append(values, []any{
			username,
			string(s.Month),
			s.CommuteCount,
			s.WalkCount,
			s.CommuteCost,
			s.GeekSeekTimes,
			s.GeekSeekAmounts,
			s.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	rng := fmt.Sprintf("%s!A:H", c.statsSheet)
	vr := &gsheet.ValueRange{Values: values}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.statsSheet, err)
	}

	slog.InfoContext(ctx, "Monthly stats exported",
		"username", username,
		"rows", len(values),
		"sheet", c.statsSheet)
	return nil
}
