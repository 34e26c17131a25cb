// Package google exports aggregated reports to a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// Config selects the target spreadsheet and the credentials. A configured
// OAuth client wins over the service account. Inline JSON wins over files.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

// NewExporter creates an exporter authenticated with a service account.
func NewExporter(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	opts, auth, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created",
		log.FieldSpreadsheetID, cfg.SpreadsheetID,
		"auth", auth)

	return NewExporterWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewExporterWithService wraps an existing service.
func NewExporterWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Report"
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetName, logger: logger}
}

// NewService builds a Sheets service that talks to endpoint with the given
// HTTP client and no authentication of its own.
func NewService(ctx context.Context, client *http.Client, endpoint string) (*gsheet.Service, error) {
	if client == nil {
		client = newHTTPClientWithPooling()
	}
	return gsheet.NewService(ctx, goption.WithHTTPClient(client), goption.WithEndpoint(endpoint))
}

// clientOptions picks OAuth when a client secret is configured and a service
// account otherwise.
func clientOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, string, error) {
	clientJSON, err := readInlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile, "oauth client")
	if err != nil {
		return nil, "", err
	}
	if clientJSON != nil {
		tokenJSON, err := readInlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile, "oauth token")
		if err != nil {
			return nil, "", err
		}
		if tokenJSON == nil {
			return nil, "", errors.New("oauth client configured without a token (run kakeibo-oauth first)")
		}
		ts, err := tokenSource(ctx, clientJSON, tokenJSON)
		if err != nil {
			return nil, "", err
		}
		return []goption.ClientOption{goption.WithTokenSource(ts)}, "oauth", nil
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, "", err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, "service_account", nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			return loadCredentials(Config{CredentialsFile: path})
		}
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export replaces the contents of the report tab for rep's year with rep.
// The tab is created when missing. It returns the written A1 range.
func (e *Exporter) Export(ctx context.Context, rep core.Report) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(e.sheetBase, rep.Range.Start.Year())

	if err := e.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, quoteSheet(sheet), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", sheet, err)
	}

	rows := ReportRows(rep)
	rng := fmt.Sprintf("%s!A1:%s%d", quoteSheet(sheet), columnName(maxWidth(rows)), len(rows))
	// RAW keeps user-entered category names from being evaluated as formulas.
	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	e.logger.InfoContext(ctx, "Exported report",
		log.FieldOperation, log.OpExport,
		log.FieldSpreadsheetID, e.spreadsheetID,
		log.FieldRange, rep.Range.String(),
		"sheet", sheet,
		"rows", len(rows))
	return rng, nil
}

func (e *Exporter) ensureSheet(ctx context.Context, sheet string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
	}}}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	e.logger.InfoContext(ctx, "Created report sheet", "sheet", sheet)
	return nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// quoteSheet quotes a sheet title for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
