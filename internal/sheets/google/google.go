package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

var ErrSheetNotFound = errors.New("sheet not found")

// Ensure interface conformance
var _ sheets.Ledger = (*Client)(nil)

// Config names the single sheet the client works on and where its
// credentials come from. It is resolved once, in Connect.
type Config struct {
	SpreadsheetID string
	// SheetName selects a worksheet by title; empty means the first one.
	SheetName string

	// CredentialsFile is checked first; a missing file is not an error.
	CredentialsFile string
	// CredentialsSecret names an environment variable holding the
	// service account JSON, used when the file is absent.
	CredentialsSecret string

	// Endpoint and HTTPClient override the API base URL and transport.
	// A non-nil HTTPClient is used as-is, without adding authentication.
	Endpoint   string
	HTTPClient *http.Client

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetID       int64
	sheetTitle    string
}

// Connect resolves credentials, checks that the remote accepts them and
// returns a client bound to the configured sheet. Failures are
// *core.CredentialError, *core.AuthError or *core.RemoteError.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	credsJSON, source, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}
	creds, err := goauth.CredentialsFromJSON(ctx, credsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, &core.CredentialError{Source: source, Err: err}
	}
	slog.InfoContext(ctx, "Resolved Google credentials", "source", source, "project_id", creds.ProjectID)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// The token source outlives the connect call.
		httpClient = oauth2.NewClient(context.WithoutCancel(ctx), creds.TokenSource)
	}
	opts := []goption.ClientOption{goption.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, goption.WithEndpoint(cfg.Endpoint))
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, &core.RemoteError{Op: "connect", Err: fmt.Errorf("create sheets service: %w", err)}
	}

	c := &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID}
	if err := c.bindSheet(ctx, cfg.SheetName); err != nil {
		return nil, err
	}
	if err := c.ensureHeader(ctx); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.sheetTitle,
		"sheet_id", c.sheetID)
	return c, nil
}

// resolveCredentials reads the local file if it exists, otherwise the
// named secret.
func resolveCredentials(cfg Config) ([]byte, string, error) {
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			return data, "file:" + path, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "file:" + path, &core.CredentialError{Source: "file:" + path, Err: err}
		}
	}

	lookup := cfg.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if key := strings.TrimSpace(cfg.CredentialsSecret); key != "" {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return []byte(v), "secret:" + key, nil
		}
	}

	return nil, "", &core.CredentialError{Err: fmt.Errorf("no credentials found (file %q absent, secret %q unset)",
		cfg.CredentialsFile, cfg.CredentialsSecret)}
}

func (c *Client) bindSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("spreadsheetId", "sheets.properties(sheetId,title,index)").
		Context(ctx).Do()
	if err != nil {
		if isAuthFailure(err) {
			return &core.AuthError{Err: err}
		}
		return &core.RemoteError{Op: "connect", Err: err}
	}

	var first *gsheet.SheetProperties
	for _, sh := range ss.Sheets {
		p := sh.Properties
		if p == nil {
			continue
		}
		if name != "" && p.Title == name {
			c.sheetID, c.sheetTitle = p.SheetId, p.Title
			return nil
		}
		if first == nil || p.Index < first.Index {
			first = p
		}
	}
	if name != "" || first == nil {
		return &core.RemoteError{Op: "connect", Err: fmt.Errorf("%w: %q", ErrSheetNotFound, name)}
	}
	c.sheetID, c.sheetTitle = first.SheetId, first.Title
	return nil
}

// ensureHeader writes the header row into a blank sheet so that the first
// append lands on row 2.
func (c *Client) ensureHeader(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A1:E1")).Context(ctx).Do()
	if err != nil {
		return c.remote("connect", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{core.HeaderRow()}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.a1("A1:E1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return c.remote("connect", err)
	}
	slog.InfoContext(ctx, "Wrote header row to empty sheet", "sheet", c.sheetTitle)
	return nil
}

// Ping checks that the spreadsheet is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return c.remote("ping", err)
	}
	return nil
}

// Append adds e as the last row, in the fixed 5-column order.
func (c *Client) Append(ctx context.Context, e core.Entry) (sheets.Mutation, error) {
	if err := e.Validate(); err != nil {
		return sheets.Mutation{}, fmt.Errorf("validation failed: %w", err)
	}
	vr := &gsheet.ValueRange{Values: [][]any{core.EncodeRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:E"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return sheets.Mutation{}, c.remote("append", err)
	}

	position := -1
	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			position = row - 2
		}
	}
	slog.InfoContext(ctx, "Appended ledger row",
		"sheet", c.sheetTitle,
		"position", position,
		"amount", e.Amount,
		"type", string(e.Type))
	return sheets.Mutated(sheets.OpAppend, position), nil
}

// ListAll reads every row and decodes them against the header row.
func (c *Client) ListAll(ctx context.Context) ([]core.Entry, error) {
	values, err := c.readAll(ctx, "list")
	if err != nil {
		return nil, err
	}
	entries, err := core.DecodeRecords(values)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.sheetTitle, err)
	}
	return entries, nil
}

// DeleteAt removes the row at display position, i.e. sheet row position+2.
func (c *Client) DeleteAt(ctx context.Context, position int) (sheets.Mutation, error) {
	values, err := c.readAll(ctx, "delete")
	if err != nil {
		return sheets.Mutation{}, err
	}
	n := len(values) - 1
	if n < 0 {
		n = 0
	}
	if err := core.CheckPosition(position, n); err != nil {
		return sheets.Mutation{}, err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    c.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(position + 1), // 0-based, skips the header
					EndIndex:   int64(position + 2),
					// sheetId 0 is the common case and must still be sent
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return sheets.Mutation{}, c.remote("delete", err)
	}
	slog.InfoContext(ctx, "Deleted ledger row", "sheet", c.sheetTitle, "position", position, "row", position+2)
	return sheets.Mutated(sheets.OpDelete, position), nil
}

func (c *Client) readAll(ctx context.Context, op string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A:E")).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, c.remote(op, err)
	}
	return resp.Values, nil
}

func (c *Client) a1(rng string) string {
	return "'" + strings.ReplaceAll(c.sheetTitle, "'", "''") + "'!" + rng
}

func (c *Client) remote(op string, err error) error {
	if isAuthFailure(err) {
		err = &core.AuthError{Err: err}
	}
	return &core.RemoteError{Op: op, Err: err}
}

func isAuthFailure(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
	}
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr)
}

// firstRow extracts the row number of the first cell of an A1 range such as
// "'Sheet1'!A5:E5".
func firstRow(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
