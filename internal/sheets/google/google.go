// Package google writes the installment journal to a Google Sheets tab using
// a service account or a saved OAuth user token.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	xgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "financas/internal/sheets"
)

// Options selects the spreadsheet and the credentials. An OAuth token file
// takes precedence over service account credentials; CredentialsJSON wins
// over CredentialsFile when both are set.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Journal struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.JournalWriter = (*Journal)(nil)

// NewJournal authenticates with the service account and makes sure the
// journal tab starts with a header row.
func NewJournal(ctx context.Context, opts Options) (*Journal, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(opts.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	j := newJournal(svc, opts.SpreadsheetID, opts.SheetName)
	if err := j.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func newJournal(svc *gsheet.Service, spreadsheetID, sheetName string) *Journal {
	return &Journal{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func readCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case opts.CredentialsFile != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}
}

// newSheetsService builds a Sheets client whose transport pools connections.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())

	ts, err := tokenSource(base, opts)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(base, ts)

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func tokenSource(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	if opts.OAuthTokenFile != "" {
		slog.InfoContext(ctx, "Creating Google Sheets service", "auth", "oauth_token", "token_file", opts.OAuthTokenFile)
		return oauthTokenSource(ctx, opts)
	}

	credentialsJSON, err := readCredentials(opts)
	if err != nil {
		return nil, err
	}
	creds, err := xgoogle.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	slog.InfoContext(ctx, "Creating Google Sheets service",
		"auth", "service_account",
		"project_id", creds.ProjectID,
		"scope", gsheet.SpreadsheetsScope)
	return creds.TokenSource, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

func (j *Journal) columns() string {
	last := rune('A' + len(ports.JournalHeader) - 1)
	return fmt.Sprintf("%s!A:%c", j.sheetName, last)
}

// EnsureHeader writes the header row when the first row of the tab is empty.
func (j *Journal) EnsureHeader(ctx context.Context) error {
	last := rune('A' + len(ports.JournalHeader) - 1)
	rng := fmt.Sprintf("%s!A1:%c1", j.sheetName, last)

	resp, err := j.svc.Spreadsheets.Values.Get(j.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read journal header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{ports.JournalHeader}}
	_, err = j.svc.Spreadsheets.Values.Update(j.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write journal header %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Journal header written", "sheet", j.sheetName)
	return nil
}

// Append adds rows after the last non-empty row of the journal tab.
func (j *Journal) Append(ctx context.Context, rows []ports.JournalRow) (string, error) {
	if j.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", errors.New("no journal rows to append")
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}

	resp, err := j.svc.Spreadsheets.Values.Append(j.spreadsheetID, j.columns(), &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", j.sheetName, err)
	}

	ref := j.columns()
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}
